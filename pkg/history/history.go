// Package history keeps a local SQLite record of every catalog entry run.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schema string

// Status values stored for a run.
const (
	StatusPersisted = "persisted"
	StatusEmpty     = "empty"
	StatusFailed    = "failed"
)

// DefaultRecentLimit is used by Recent when limit is not positive.
const DefaultRecentLimit = 20

// Options configures the history database.
type Options struct {
	// CreateIfNotExists creates the database file and its directory.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Run is one stored entry run.
type Run struct {
	ID        int64
	RunID     string
	Group     string
	Label     string
	Filters   string
	StartedAt time.Time
	Elapsed   time.Duration
	Reason    string
	Pages     int
	Rows      int
	Columns   int
	Status    string
	CSVPath   string
	Error     string
}

// DB is the run history database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string, opts Options) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path is required")
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("history database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history tables: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Record stores one run and returns its row ID.
func (d *DB) Record(ctx context.Context, r Run) (int64, error) {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	res, err := d.db.ExecContext(ctx, `
	INSERT INTO runs (run_id, entry_group, label, filters, started_at, elapsed_ms,
		reason, pages, row_count, column_count, status, csv_path, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Group, r.Label, r.Filters, r.StartedAt.UnixMilli(), r.Elapsed.Milliseconds(),
		r.Reason, r.Pages, r.Rows, r.Columns, r.Status, r.CSVPath, r.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := d.db.QueryContext(ctx, `
	SELECT id, run_id, entry_group, label, filters, started_at, elapsed_ms,
		reason, pages, row_count, column_count, status, csv_path, error
	FROM runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r         Run
			startedAt int64
			elapsedMS int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Group, &r.Label, &r.Filters, &startedAt, &elapsedMS,
			&r.Reason, &r.Pages, &r.Rows, &r.Columns, &r.Status, &r.CSVPath, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedAt)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	return out, nil
}

// CountByRunID returns how many entries a process run recorded.
func (d *DB) CountByRunID(ctx context.Context, runID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
