package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cycle outcomes.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Cycle records one fetch-format-send run.
type Cycle struct {
	ID         string    `json:"id"`
	TriggerAt  time.Time `json:"trigger_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Events     int       `json:"events"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Store is a sqlite-backed history of notification cycles.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One writer at a time keeps sqlite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const createTable = `
    CREATE TABLE IF NOT EXISTS cycles (
        id TEXT PRIMARY KEY,
        trigger_at INTEGER NOT NULL,
        started_at INTEGER NOT NULL,
        finished_at INTEGER NOT NULL,
        events INTEGER NOT NULL DEFAULT 0,
        status TEXT NOT NULL,
        error TEXT NOT NULL DEFAULT ''
    );
    CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
    `
	_, err := db.Exec(createTable)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished cycle.
func (s *Store) Record(ctx context.Context, c Cycle) error {
	if c.ID == "" {
		return errors.New("cycle id is empty")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO cycles(id, trigger_at, started_at, finished_at, events, status, error) VALUES(?, ?, ?, ?, ?, ?, ?)",
		c.ID,
		c.TriggerAt.UnixNano(),
		c.StartedAt.UnixNano(),
		c.FinishedAt.UnixNano(),
		c.Events,
		c.Status,
		c.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle: %w", err)
	}
	return nil
}

// Recent returns up to limit cycles, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, trigger_at, started_at, finished_at, events, status, error FROM cycles ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var (
			c                          Cycle
			trigger, started, finished int64
		)
		if err := rows.Scan(&c.ID, &trigger, &started, &finished, &c.Events, &c.Status, &c.Error); err != nil {
			return nil, err
		}
		c.TriggerAt = time.Unix(0, trigger).UTC()
		c.StartedAt = time.Unix(0, started).UTC()
		c.FinishedAt = time.Unix(0, finished).UTC()
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}
