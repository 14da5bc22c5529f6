package fsutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// CopyOptions selects which metadata CopyWithMetadata carries over.
type CopyOptions struct {
	Xattrs bool
	Times  bool

	// Logger receives notes about metadata that could not be copied.
	Logger *slog.Logger
}

// DefaultCopyOptions preserves all supported metadata.
func DefaultCopyOptions() CopyOptions {
	return CopyOptions{Xattrs: true, Times: true}
}

// CopyWithMetadata copies the content of src to dst together with its
// permission bits and, as selected by opts, extended attributes and
// access/modification times. The data is written to a temporary file in
// the destination directory and renamed over dst, so a partially written
// file never appears under dst. An existing dst is replaced.
func CopyWithMetadata(src *os.File, dst string, opts CopyOptions) (n int64, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fi, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", src.Name(), err)
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file (%v)", src.Name(), fi.Mode().Type())
	}
	atime := accessTime(src, fi)

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".imobax-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err = io.Copy(tmp, src)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", src.Name(), err)
	}

	// Extended attributes go first: writing them may need the write
	// permission that the copied mode can take away.
	if opts.Xattrs {
		if err = copyXattrs(src, tmp, logger); err != nil {
			return n, fmt.Errorf("copy xattrs of %s: %w", src.Name(), err)
		}
	}
	if err = tmp.Chmod(fi.Mode().Perm()); err != nil {
		return n, fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", tmpName, err)
	}
	if opts.Times {
		if err = os.Chtimes(tmpName, atime, fi.ModTime()); err != nil {
			return n, fmt.Errorf("chtimes %s: %w", tmpName, err)
		}
	}

	if err = os.Rename(tmpName, dst); err != nil {
		return n, fmt.Errorf("rename to %s: %w", dst, err)
	}
	return n, nil
}
