package fsutil

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// accessTime returns the last access time of f, or its modification time
// when that is unavailable.
func accessTime(f *os.File, fi os.FileInfo) time.Time {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return fi.ModTime()
	}
	return time.Unix(st.Atim.Unix())
}
