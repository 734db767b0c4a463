// internal/database/db.go
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Database wraps the SQLite database holding per-project ingest state:
// tail resume positions per source, ingest history, and settings.
type Database struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	d := &Database{db: db}
	if err := d.init(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// init creates the database schema.
func (d *Database) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tail_state (
		project_id TEXT NOT NULL,
		source TEXT NOT NULL,
		last_seen_id TEXT NOT NULL DEFAULT '',
		last_known_size INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (project_id, source)
	);

	CREATE TABLE IF NOT EXISTS ingests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		head_revision_id TEXT,
		processed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		bootstrapped INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ingests_project ON ingests(project_id);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// TailState is one source's persisted resume position.
type TailState struct {
	Source        string
	LastSeenID    string
	LastKnownSize int64
}

// SaveTailState upserts the resume position for one source of a project.
func (d *Database) SaveTailState(projectID string, state TailState) error {
	_, err := d.db.Exec(`
		INSERT INTO tail_state (project_id, source, last_seen_id, last_known_size, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, source) DO UPDATE SET
			last_seen_id = excluded.last_seen_id,
			last_known_size = excluded.last_known_size,
			updated_at = excluded.updated_at`,
		projectID, state.Source, state.LastSeenID, state.LastKnownSize, time.Now())
	if err != nil {
		return fmt.Errorf("save tail state: %w", err)
	}
	return nil
}

// TailStates returns every saved resume position for a project.
func (d *Database) TailStates(projectID string) ([]TailState, error) {
	rows, err := d.db.Query(
		`SELECT source, last_seen_id, last_known_size FROM tail_state WHERE project_id = ?`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("query tail state: %w", err)
	}
	defer rows.Close()

	var states []TailState
	for rows.Next() {
		var st TailState
		if err := rows.Scan(&st.Source, &st.LastSeenID, &st.LastKnownSize); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// IngestRecord is one row of ingest history.
type IngestRecord struct {
	ProjectID      string
	HeadRevisionID string
	Processed      int
	Skipped        int
	Bootstrapped   int
	Warnings       int
	CreatedAt      time.Time
}

// RecordIngest appends one ingest run to the history.
func (d *Database) RecordIngest(rec IngestRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO ingests (project_id, head_revision_id, processed, skipped, bootstrapped, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ProjectID, rec.HeadRevisionID, rec.Processed, rec.Skipped, rec.Bootstrapped, rec.Warnings, time.Now())
	if err != nil {
		return fmt.Errorf("record ingest: %w", err)
	}
	return nil
}

// Ingests returns the ingest history for a project, newest first.
func (d *Database) Ingests(projectID string, limit int) ([]IngestRecord, error) {
	rows, err := d.db.Query(`
		SELECT project_id, head_revision_id, processed, skipped, bootstrapped, warnings, created_at
		FROM ingests WHERE project_id = ? ORDER BY id DESC LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingests: %w", err)
	}
	defer rows.Close()

	var records []IngestRecord
	for rows.Next() {
		var rec IngestRecord
		var head sql.NullString
		if err := rows.Scan(&rec.ProjectID, &head, &rec.Processed, &rec.Skipped, &rec.Bootstrapped, &rec.Warnings, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.HeadRevisionID = head.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SetSetting stores a key/value setting.
func (d *Database) SetSetting(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	return err
}

// GetSetting returns a setting value, or "" when unset.
func (d *Database) GetSetting(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
