package restore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Siguza/imobax/internal/fsutil"
	"github.com/Siguza/imobax/internal/layout"
	"github.com/Siguza/imobax/internal/manifest"
	"github.com/Siguza/imobax/internal/safety"
)

// Options configures a Restorer.
type Options struct {
	// Source is the backup directory holding the blobs.
	Source string
	// Target is the directory files are restored into. It is created if
	// missing.
	Target string
	// Layout is the blob storage layout of Source.
	Layout layout.Layout

	// Force replaces existing destination files instead of failing.
	Force bool
	// IgnoreMissing skips entries whose blob is absent instead of failing.
	IgnoreMissing bool

	// Workers is the number of entries restored concurrently. Zero or
	// less means one, which processes entries strictly in order.
	Workers int

	Copy fsutil.CopyOptions

	Logger *slog.Logger
	// Tracker, if set, receives progress updates.
	Tracker *Tracker
}

// Status is the outcome of restoring a single entry.
type Status int

const (
	// StatusPending means the entry was never processed, because the run
	// failed or was cancelled first.
	StatusPending Status = iota
	StatusRestored
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRestored:
		return "restored"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Result is the outcome for one entry.
type Result struct {
	Entry  manifest.Entry
	Status Status
	// Dest is the absolute destination path, empty if it was never computed.
	Dest  string
	Bytes int64
	Err   error
}

// Report summarizes a restore run. Results is in entry order.
type Report struct {
	Results  []Result
	Restored int
	Skipped  int
	Bytes    int64
}

// Missing returns the entries skipped because their blob was absent.
func (r *Report) Missing() []manifest.Entry {
	var out []manifest.Entry
	for _, res := range r.Results {
		if res.Status == StatusSkipped {
			out = append(out, res.Entry)
		}
	}
	return out
}

// Restorer copies the blobs of a backup into a directory tree.
type Restorer struct {
	opts    Options
	logger  *slog.Logger
	tracker *Tracker
}

// New returns a Restorer for opts.
func New(opts Options) (*Restorer, error) {
	if opts.Source == "" {
		return nil, fmt.Errorf("source directory is required")
	}
	if opts.Target == "" {
		return nil, fmt.Errorf("target directory is required")
	}
	if opts.Layout != layout.TwoLevel && opts.Layout != layout.Flat {
		return nil, fmt.Errorf("unknown storage layout %v", opts.Layout)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Copy.Logger == nil {
		opts.Copy.Logger = logger
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}

	return &Restorer{opts: opts, logger: logger, tracker: tracker}, nil
}

// Tracker returns the progress tracker of r.
func (r *Restorer) Tracker() *Tracker {
	return r.tracker
}

// Restore restores entries into the target directory. The first fatal
// error stops the run and is returned along with a report of what was
// done up to that point; files already restored are left in place.
func (r *Restorer) Restore(ctx context.Context, entries []manifest.Entry) (*Report, error) {
	r.tracker.start(len(entries))
	r.logger.Info("restore starting",
		"source", r.opts.Source,
		"target", r.opts.Target,
		"layout", r.opts.Layout,
		"entries", len(entries),
		"workers", r.opts.Workers,
		"force", r.opts.Force,
		"ignore_missing", r.opts.IgnoreMissing)

	if err := fsutil.MkdirAll(r.opts.Target, true); err != nil {
		r.tracker.setPhase(PhaseFailed)
		return nil, fmt.Errorf("%w: creating target directory: %w", ErrIO, err)
	}

	results := make([]Result, len(entries))
	for i, e := range entries {
		results[i].Entry = e
	}

	err := runPool(ctx, r.opts.Workers, len(entries), func(_ context.Context, i int) error {
		res := &results[i]
		r.restoreEntry(res)
		return res.Err
	})

	report := &Report{Results: results}
	for _, res := range results {
		switch res.Status {
		case StatusRestored:
			report.Restored++
			report.Bytes += res.Bytes
		case StatusSkipped:
			report.Skipped++
		}
	}

	switch {
	case err == nil:
		r.tracker.setPhase(PhaseComplete)
		r.logger.Info("restore complete", "restored", report.Restored, "skipped", report.Skipped, "bytes", report.Bytes)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		r.tracker.setPhase(PhaseCancelled)
		r.logger.Warn("restore cancelled", "restored", report.Restored, "error", err)
	default:
		r.tracker.setPhase(PhaseFailed)
		r.logger.Error("restore failed", "restored", report.Restored, "error", err)
	}
	return report, err
}

// restoreEntry fills in res for res.Entry. A skipped entry has a nil Err.
func (r *Restorer) restoreEntry(res *Result) {
	e := res.Entry
	blob := r.opts.Layout.BlobPath(e.FileID)
	logger := r.logger.With("file_id", e.FileID, "domain", e.Domain, "path", e.RelativePath)

	fail := func(path string, err error) {
		res.Status = StatusFailed
		res.Err = err
		r.tracker.fileFailed(path, err)
	}

	src, err := os.Open(filepath.Join(r.opts.Source, filepath.FromSlash(blob)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if r.opts.IgnoreMissing {
				logger.Warn("source blob missing, skipping", "blob", blob)
				res.Status = StatusSkipped
				r.tracker.fileSkipped(blob)
				return
			}
			fail(blob, fmt.Errorf("%w: %s for %s/%s", ErrSourceMissing, blob, e.Domain, e.RelativePath))
			return
		}
		fail(blob, fmt.Errorf("%w: opening %s: %w", ErrIO, blob, err))
		return
	}
	defer src.Close()

	rel := DestPath(e.Domain, e.RelativePath)
	dst, err := safety.SafeJoinUnder(r.opts.Target, rel)
	if err != nil {
		fail(rel, fmt.Errorf("%w: %s: %w", ErrUnsafePath, rel, err))
		return
	}
	res.Dest = dst

	if err := fsutil.MkdirAll(dst, false); err != nil {
		fail(dst, fmt.Errorf("%w: %w", ErrIO, err))
		return
	}

	// Without force, claim the name first so that an existing file, or a
	// second entry with the same destination, is never overwritten.
	reserved := false
	if !r.opts.Force {
		f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				fail(dst, fmt.Errorf("%w: %s", ErrAlreadyExists, dst))
				return
			}
			fail(dst, fmt.Errorf("%w: creating %s: %w", ErrIO, dst, err))
			return
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(dst)
			fail(dst, fmt.Errorf("%w: creating %s: %w", ErrIO, dst, err))
			return
		}
		reserved = true
	}

	r.tracker.fileStarted(dst)
	n, err := fsutil.CopyWithMetadata(src, dst, r.opts.Copy)
	if err != nil {
		if reserved {
			_ = os.Remove(dst)
		}
		fail(dst, fmt.Errorf("%w: %w", ErrIO, err))
		return
	}

	logger.Debug("restored", "dest", dst, "bytes", n)
	res.Status = StatusRestored
	res.Bytes = n
	r.tracker.fileRestored(dst, n)
}
