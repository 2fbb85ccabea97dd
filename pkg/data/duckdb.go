package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS issues (
	manifest_id  VARCHAR NOT NULL,
	title        VARCHAR,
	date         VARCHAR,
	assets       INTEGER,
	synced       INTEGER,
	success      BOOLEAN,
	completed_at TIMESTAMP
)`

// Repository is the DuckDB-backed harvest ledger. It records the
// outcome of every processed issue so later runs can be summarized.
// The ledger is advisory: idempotence comes from remote existence
// checks, not from rows here.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordIssue appends one processed issue to the ledger.
func (r *Repository) RecordIssue(rec IssueRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO issues (manifest_id, title, date, assets, synced, success, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ManifestID, rec.Title, rec.Date, rec.Assets, rec.Synced, rec.Success, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("record issue %s: %w", rec.ManifestID, err)
	}
	return nil
}

// ListIssues returns every recorded issue, most recent first.
func (r *Repository) ListIssues() ([]IssueRecord, error) {
	rows, err := r.db.Query(
		`SELECT manifest_id, title, date, assets, synced, success, completed_at
		 FROM issues ORDER BY completed_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var out []IssueRecord
	for rows.Next() {
		var rec IssueRecord
		if err := rows.Scan(
			&rec.ManifestID, &rec.Title, &rec.Date,
			&rec.Assets, &rec.Synced, &rec.Success, &rec.CompletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Summary reports how many issues were processed and how many of
// those fully synced.
func (r *Repository) Summary() (total, succeeded int, err error) {
	err = r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) FROM issues`,
	).Scan(&total, &succeeded)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger summary: %w", err)
	}
	return total, succeeded, nil
}
