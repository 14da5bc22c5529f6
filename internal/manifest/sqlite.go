package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteFile is the file name of the relational manifest.
const SQLiteFile = "Manifest.db"

// Value of the Files.flags column for regular files.
const regularFileFlag = 1

const filesQuery = "SELECT `fileID`, `domain`, `relativePath` FROM `Files` WHERE `flags` = ?"

// SQLiteOptions configures ReadSQLite.
type SQLiteOptions struct {
	// Logger receives diagnostics from the reader. If nil, they are discarded.
	Logger *slog.Logger
}

// ReadSQLite reads every regular-file row of the relational manifest at
// path. The database is opened read-only and immutable; it is never
// written. A NULL in a required column or an invalid entry fails the
// whole read and no entries are returned.
func ReadSQLite(ctx context.Context, path string, opts SQLiteOptions) ([]Entry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// SQLite only opens by name, so hold a handle on the file and resolve
	// the name back from it right before opening the database. That pins
	// us to the file we looked at even if a parent directory has been
	// moved since; the window between resolving and opening remains.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestQuery, err)
	}
	defer f.Close()

	stable, err := stablePath(f)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrManifestQuery, path, err)
	}
	dsn := sqliteURI(stable)
	logger.Debug("opening relational manifest", "path", stable, "dsn", dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrManifestQuery, stable, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, filesQuery, regularFileFlag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestQuery, err)
	}
	defer rows.Close()

	var entries []Entry
	for n := 1; rows.Next(); n++ {
		var fileID, domain, relativePath sql.NullString
		if err := rows.Scan(&fileID, &domain, &relativePath); err != nil {
			return nil, fmt.Errorf("%w: scanning row %d: %w", ErrManifestQuery, n, err)
		}
		if !fileID.Valid || !domain.Valid || !relativePath.Valid {
			logger.Debug("NULL in manifest row", "row", n, "file_id", fileID.String)
			return nil, fmt.Errorf("%w: NULL in required column of row %d", ErrManifestQuery, n)
		}

		e := Entry{
			FileID:       fileID.String,
			Domain:       domain.String,
			RelativePath: relativePath.String,
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating rows: %w", ErrManifestQuery, err)
	}

	logger.Debug("relational manifest read", "entries", len(entries))
	return entries, nil
}

// sqliteURI builds a read-only, immutable SQLite URI for an absolute path.
func sqliteURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: "mode=ro&immutable=1",
	}
	return u.String()
}

// resolvePath returns the absolute, symlink-free form of name.
func resolvePath(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
