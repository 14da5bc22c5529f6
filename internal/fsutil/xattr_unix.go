//go:build darwin || freebsd || netbsd || linux || solaris

package fsutil

import (
	"errors"
	"log/slog"
	"os"

	"github.com/pkg/xattr"
	"golang.org/x/sys/unix"
)

func copyXattrs(src, dst *os.File, logger *slog.Logger) error {
	names, err := xattr.FList(src)
	if err != nil {
		if unsupportedXattr(err) {
			return nil
		}
		return err
	}

	for _, name := range names {
		value, err := xattr.FGet(src, name)
		if err != nil {
			if unsupportedXattr(err) || errors.Is(err, xattr.ENOATTR) {
				continue
			}
			return err
		}
		if err := xattr.FSet(dst, name, value); err != nil {
			// Namespaces such as security.* and trusted.* need privileges
			// that an unprivileged restore does not have.
			if unsupportedXattr(err) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
				logger.Debug("extended attribute not copied", "file", src.Name(), "name", name, "error", err)
				continue
			}
			return err
		}
	}
	return nil
}

// unsupportedXattr reports whether err means the filesystem does not do
// extended attributes at all.
func unsupportedXattr(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP)
}
