// Package history keeps a durable record of finished pipeline runs
package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one terminal pipeline run
type Record struct {
	RunID           string    `json:"run_id"`
	Fingerprint     string    `json:"fingerprint"`
	Topics          []string  `json:"topics"`
	Language        string    `json:"language"`
	State           string    `json:"state"`
	Error           string    `json:"error,omitempty"`
	Provider        string    `json:"provider,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	TargetSeconds   int       `json:"target_seconds"`
	Warnings        []string  `json:"warnings,omitempty"`
	ProcessingMS    int64     `json:"processing_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store handles all run history database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		topics TEXT,
		language TEXT,
		state TEXT NOT NULL,
		error TEXT,
		provider TEXT,
		duration_seconds REAL,
		target_seconds INTEGER,
		warnings TEXT,
		processing_ms INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Insert records a finished run. Re-inserting a run ID is a no-op.
func (s *Store) Insert(r *Record) error {
	topicsJSON, _ := json.Marshal(r.Topics)
	warningsJSON, _ := json.Marshal(r.Warnings)

	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, fingerprint, topics, language, state, error,
			provider, duration_seconds, target_seconds, warnings, processing_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, r.RunID, r.Fingerprint, string(topicsJSON), r.Language, r.State, r.Error,
		r.Provider, r.DurationSeconds, r.TargetSeconds, string(warningsJSON), r.ProcessingMS, r.CreatedAt)

	return err
}

// Recent returns the latest runs, newest first
func (s *Store) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT run_id, fingerprint, topics, language, state, error,
			provider, duration_seconds, target_seconds, warnings, processing_ms, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var topicsJSON, warningsJSON string

		err := rows.Scan(
			&r.RunID, &r.Fingerprint, &topicsJSON, &r.Language, &r.State, &r.Error,
			&r.Provider, &r.DurationSeconds, &r.TargetSeconds, &warningsJSON, &r.ProcessingMS, &r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(topicsJSON), &r.Topics)
		json.Unmarshal([]byte(warningsJSON), &r.Warnings)

		records = append(records, r)
	}

	return records, rows.Err()
}
