//go:build linux

package manifest

import (
	"os"
	"strconv"
	"strings"
)

// stablePath asks the kernel which path the open file f currently lives at.
func stablePath(f *os.File) (string, error) {
	p, err := os.Readlink("/proc/self/fd/" + strconv.Itoa(int(f.Fd())))
	if err != nil || !strings.HasPrefix(p, "/") || strings.HasSuffix(p, " (deleted)") {
		// No procfs, or not a plain file path.
		return resolvePath(f.Name())
	}
	return p, nil
}
