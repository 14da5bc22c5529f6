//go:build !linux && !darwin

package fsutil

import (
	"os"
	"time"
)

func accessTime(f *os.File, fi os.FileInfo) time.Time {
	return fi.ModTime()
}
