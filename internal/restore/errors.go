package restore

import "errors"

var (
	// ErrSourceMissing means the blob for an entry is not in the source
	// directory.
	ErrSourceMissing = errors.New("source blob missing")
	// ErrAlreadyExists means the destination file exists and force is off.
	ErrAlreadyExists = errors.New("destination already exists")
	// ErrIO wraps any other filesystem failure during restore.
	ErrIO = errors.New("I/O failure")
	// ErrUnsafePath means an entry's destination would land outside the
	// target directory.
	ErrUnsafePath = errors.New("unsafe destination path")
)
