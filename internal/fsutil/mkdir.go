package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirMode is the permission used for directories created during restore.
const DirMode = 0o755

// MkdirAll creates every missing directory along p. The last component
// of p is created too only if includeLast is set; otherwise p names a
// file and only its parents are created. Existing directories, including
// ones created concurrently by another goroutine, are not an error.
func MkdirAll(p string, includeLast bool) error {
	if p == "" {
		return fmt.Errorf("mkdir: empty path")
	}
	dir := filepath.Clean(p)
	if !includeLast {
		dir = filepath.Dir(dir)
	}
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
