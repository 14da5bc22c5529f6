package layout

import "fmt"

// Layout describes how blobs are stored under a backup's source directory.
type Layout int

const (
	// TwoLevel stores each blob in a subdirectory named after the first
	// two characters of its file ID: "ab/abcdef...".
	TwoLevel Layout = iota + 1
	// Flat stores every blob directly in the source directory.
	Flat
)

// String returns the name of the layout.
func (l Layout) String() string {
	switch l {
	case TwoLevel:
		return "two-level"
	case Flat:
		return "flat"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Dirname returns the slash-separated directory, relative to the source
// directory, that holds the blob for fileID. It is empty for Flat.
func (l Layout) Dirname(fileID string) string {
	if l == TwoLevel && len(fileID) > 2 {
		return fileID[:2]
	}
	return ""
}

// BlobPath returns the slash-separated path of the blob for fileID,
// relative to the source directory.
func (l Layout) BlobPath(fileID string) string {
	if dir := l.Dirname(fileID); dir != "" {
		return dir + "/" + fileID
	}
	return fileID
}
