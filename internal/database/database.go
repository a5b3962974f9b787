package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/vincentbai/browsetrace-replay/internal/codec"
)

// ErrNotFound is returned when no recording has the requested id.
var ErrNotFound = errors.New("database: recording not found")

// Recording is a named serialized event log.
type Recording struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	EventCount int       `json:"event_count"`
	Log        string    `json:"log,omitempty"`
}

type Database struct {
	db  *sql.DB
	now func() time.Time
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db, now: time.Now}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS recordings(
	  id          TEXT    PRIMARY KEY,
	  name        TEXT    NOT NULL,
	  created_at  INTEGER NOT NULL,
	  event_count INTEGER NOT NULL CHECK (event_count >= 0),
	  log_json    TEXT    NOT NULL CHECK (json_valid(log_json))
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_created ON recordings(created_at);
	CREATE INDEX IF NOT EXISTS idx_recordings_name    ON recordings(name);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// ValidateRecording checks the name and parses the log, returning its
// number of records.
func (d *Database) ValidateRecording(name, log string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("name cannot be empty")
	}
	records, err := codec.ParseRecords(log)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// InsertRecording stores log under name and returns the new recording
// without its log.
func (d *Database) InsertRecording(name, log string) (Recording, error) {
	count, err := d.ValidateRecording(name, log)
	if err != nil {
		return Recording{}, fmt.Errorf("invalid recording: %w", err)
	}
	rec := Recording{
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  d.now().UTC().Truncate(time.Millisecond),
		EventCount: count,
	}

	transaction, err := d.db.Begin()
	if err != nil {
		return Recording{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	_, err = transaction.Exec(`INSERT INTO recordings(id, name, created_at, event_count, log_json) VALUES(?,?,?,?,?)`,
		rec.ID, rec.Name, rec.CreatedAt.UnixMilli(), rec.EventCount, log)
	if err != nil {
		_ = transaction.Rollback()
		return Recording{}, fmt.Errorf("failed to execute statement: %w", err)
	}
	if err := transaction.Commit(); err != nil {
		return Recording{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rec, nil
}

// GetRecording returns a recording with its log.
func (d *Database) GetRecording(id string) (Recording, error) {
	var rec Recording
	var created int64
	err := d.db.QueryRow(`SELECT id, name, created_at, event_count, log_json FROM recordings WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &created, &rec.EventCount, &rec.Log)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Recording{}, fmt.Errorf("failed to query recording: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	return rec, nil
}

// ListRecordings returns every recording, newest first, without logs.
func (d *Database) ListRecordings() ([]Recording, error) {
	rows, err := d.db.Query(`SELECT id, name, created_at, event_count FROM recordings ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	recordings := []Recording{}
	for rows.Next() {
		var rec Recording
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Name, &created, &rec.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(created).UTC()
		recordings = append(recordings, rec)
	}
	return recordings, rows.Err()
}

func (d *Database) DeleteRecording(id string) error {
	result, err := d.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
