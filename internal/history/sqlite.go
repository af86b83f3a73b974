package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

// schemaStatements are executed in order; all use IF NOT EXISTS so
// re-application is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS deliveries (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id       TEXT NOT NULL,
		job_name     TEXT NOT NULL DEFAULT '',
		target       TEXT NOT NULL DEFAULT '',
		fired_at     TEXT NOT NULL,
		attempted_at TEXT NOT NULL,
		status       TEXT NOT NULL,
		error        TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_deliveries_job ON deliveries(job_id, attempted_at)`,
}

// Store is a SQLite-backed Recorder.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time interface check.
var _ Recorder = (*Store)(nil)

// Open opens (creating if needed) the history database at path. The
// database uses WAL mode and a single connection since SQLite serialises
// writes anyway.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("history: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: set busy_timeout: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: migrate schema: %w", err)
		}
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements Recorder. Failures are logged, never returned: a full
// disk must not turn a confirmed delivery into an apparent failure.
func (s *Store) Record(a Attempt) {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO deliveries (job_id, job_name, target, fired_at, attempted_at, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.JobID, a.JobName, a.Target,
		a.FiredAt.UTC().Format(time.RFC3339Nano),
		a.AttemptedAt.UTC().Format(time.RFC3339Nano),
		a.Status, a.Error,
	)
	if err != nil {
		s.logger.Error("history: record failed", "job", a.JobID, "error", err)
	}
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, job_name, target, fired_at, attempted_at, status, error
		FROM deliveries
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var firedAt, attemptedAt string
		if err := rows.Scan(&a.JobID, &a.JobName, &a.Target, &firedAt, &attemptedAt, &a.Status, &a.Error); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, firedAt); err == nil {
			a.FiredAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, attemptedAt); err == nil {
			a.AttemptedAt = t
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate rows: %w", err)
	}
	return out, nil
}

// Prune deletes attempts older than the cutoff and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM deliveries WHERE attempted_at < ?",
		before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: rows affected: %w", err)
	}
	return n, nil
}
