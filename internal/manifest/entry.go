package manifest

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
)

// Manifest decoding errors.
var (
	// ErrBadMagic indicates the binary manifest does not start with the expected tag.
	ErrBadMagic = errors.New("bad manifest magic")

	// ErrTruncated indicates a length field or string body runs past the end of the binary manifest.
	ErrTruncated = errors.New("manifest truncated")

	// ErrManifestQuery indicates the relational manifest could not be opened or read.
	ErrManifestQuery = errors.New("manifest query failed")

	// ErrNoManifest indicates the source directory holds neither manifest file.
	ErrNoManifest = errors.New("no manifest found")

	// ErrInvalidEntry indicates a regular-file record with a missing or malformed field.
	ErrInvalidEntry = errors.New("invalid manifest entry")
)

// FileIDLength is the length of a hex-encoded file ID.
const FileIDLength = 2 * sha1.Size

// Entry is one backed-up regular file.
type Entry struct {
	FileID       string `json:"file_id"`
	Domain       string `json:"domain"`
	RelativePath string `json:"relative_path"`
}

// Validate checks the invariants every decoded entry must satisfy.
func (e Entry) Validate() error {
	if !IsFileID(e.FileID) {
		return fmt.Errorf("%w: file ID %q is not %d lowercase hex characters", ErrInvalidEntry, e.FileID, FileIDLength)
	}
	if e.Domain == "" {
		return fmt.Errorf("%w: %s has an empty domain", ErrInvalidEntry, e.FileID)
	}
	if e.RelativePath == "" {
		return fmt.Errorf("%w: %s has an empty relative path", ErrInvalidEntry, e.FileID)
	}
	return nil
}

// FileID returns the content address of a file that the binary manifest
// does not record: the lowercase hex SHA-1 of domain + "-" + relativePath.
func FileID(domain, relativePath string) string {
	sum := sha1.Sum([]byte(domain + "-" + relativePath))
	return hex.EncodeToString(sum[:])
}

// IsFileID reports whether s is a well-formed file ID.
func IsFileID(s string) bool {
	if len(s) != FileIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
