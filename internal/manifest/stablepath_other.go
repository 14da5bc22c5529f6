//go:build !linux

package manifest

import "os"

func stablePath(f *os.File) (string, error) {
	return resolvePath(f.Name())
}
