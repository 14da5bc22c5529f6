package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Siguza/imobax/internal/layout"
	"github.com/Siguza/imobax/internal/safety"
)

// DefaultMaxBinarySize caps how much of a binary manifest is read into memory.
const DefaultMaxBinarySize = 1 << 30

// Source identifies which manifest encoding a backup uses. It also fixes
// the storage layout of the blobs, so the two never disagree.
type Source int

const (
	// SourceRelational is the SQLite manifest, Manifest.db.
	SourceRelational Source = iota + 1
	// SourceBinary is the legacy length-prefixed manifest, Manifest.mbdb.
	SourceBinary
)

func (s Source) String() string {
	switch s {
	case SourceRelational:
		return "relational"
	case SourceBinary:
		return "binary"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// FileName returns the manifest file name for s.
func (s Source) FileName() string {
	if s == SourceRelational {
		return SQLiteFile
	}
	return MBDBFile
}

// Layout returns the blob storage layout that goes with s.
func (s Source) Layout() layout.Layout {
	if s == SourceRelational {
		return layout.TwoLevel
	}
	return layout.Flat
}

// Options configures Open.
type Options struct {
	Logger *slog.Logger

	// MaxBinarySize is the largest binary manifest Open will read. Zero
	// means DefaultMaxBinarySize.
	MaxBinarySize int64
}

// Manifest is the fully decoded manifest of a backup.
type Manifest struct {
	Source  Source
	Path    string
	Entries []Entry
}

// Layout returns the storage layout of the backup's blobs.
func (m *Manifest) Layout() layout.Layout {
	return m.Source.Layout()
}

// Detect reports which manifest srcDir holds. The relational manifest
// wins when both are present.
func Detect(srcDir string) (Source, string, error) {
	for _, src := range []Source{SourceRelational, SourceBinary} {
		p := filepath.Join(srcDir, src.FileName())
		_, err := os.Stat(p)
		if err == nil {
			return src, p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return 0, "", fmt.Errorf("checking for %s: %w", p, err)
		}
	}
	return 0, "", fmt.Errorf("%w in %s: looked for %s and %s", ErrNoManifest, srcDir, SQLiteFile, MBDBFile)
}

// Open detects and decodes the manifest in srcDir.
func Open(ctx context.Context, srcDir string, opts Options) (*Manifest, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	src, path, err := Detect(srcDir)
	if err != nil {
		return nil, err
	}
	logger.Info("manifest found", "source", src, "path", path, "layout", src.Layout())

	var entries []Entry
	switch src {
	case SourceRelational:
		entries, err = ReadSQLite(ctx, path, SQLiteOptions{Logger: logger})
	case SourceBinary:
		entries, err = readMBDBFile(path, opts.MaxBinarySize)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	logger.Info("manifest decoded", "source", src, "entries", len(entries))
	return &Manifest{Source: src, Path: path, Entries: entries}, nil
}

func readMBDBFile(path string, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultMaxBinarySize
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := safety.ReadAllWithLimit(f, limit)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return DecodeMBDB(buf)
}
