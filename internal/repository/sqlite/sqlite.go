// Package sqlite persists the pipeline's operational history: toolchain
// install receipts and per-run deployment records. The history makes
// idempotence observable (one install-log row per actual install) and lets
// an operator understand partial progress across re-runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Repository implements history persistence using SQLite
type Repository struct {
	db *sql.DB
}

// RunRecord is one pipeline run outcome for a target.
type RunRecord struct {
	Target           string
	Triple           string
	Stage            string // last stage reached
	Success          bool
	RemotePath       string
	BytesTransferred uint64
	Error            string
	CreatedAt        time.Time
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS toolchain_installs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		triple TEXT NOT NULL,
		package TEXT NOT NULL,
		installed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		triple TEXT NOT NULL,
		stage TEXT NOT NULL,
		success INTEGER NOT NULL,
		remote_path TEXT,
		bytes_transferred INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_installs_triple ON toolchain_installs(triple);
	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	`

	_, err := r.db.Exec(schema)
	return err
}

// RecordInstall logs one completed toolchain installation.
func (r *Repository) RecordInstall(ctx context.Context, triple, pkg string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO toolchain_installs (triple, package) VALUES (?, ?)`,
		triple, pkg)
	if err != nil {
		return fmt.Errorf("failed to record install: %w", err)
	}
	return nil
}

// InstallCount returns how many installs have been recorded for a triple.
func (r *Repository) InstallCount(ctx context.Context, triple string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM toolchain_installs WHERE triple = ?`, triple).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count installs: %w", err)
	}
	return count, nil
}

// RecordRun logs one pipeline run outcome.
func (r *Repository) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (target, triple, stage, success, remote_path, bytes_transferred, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Target, rec.Triple, rec.Stage, boolToInt(rec.Success),
		rec.RemotePath, rec.BytesTransferred, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecentRuns returns the latest run records for a target, newest first.
func (r *Repository) RecentRuns(ctx context.Context, target string, limit int) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT target, triple, stage, success, remote_path, bytes_transferred, error, created_at
		 FROM runs WHERE target = ? ORDER BY id DESC LIMIT ?`,
		target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var success int
		var remotePath, errText sql.NullString
		if err := rows.Scan(&rec.Target, &rec.Triple, &rec.Stage, &success,
			&remotePath, &rec.BytesTransferred, &errText, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Success = success != 0
		rec.RemotePath = remotePath.String
		rec.Error = errText.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
