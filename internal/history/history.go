// Package history records generation requests in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS generations(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL NOT NULL,
		source TEXT NOT NULL,
		prompt TEXT NOT NULL,
		output TEXT NOT NULL,
		temperature REAL NOT NULL,
		top_p REAL NOT NULL,
		max_length INTEGER NOT NULL,
		stop_reason TEXT NOT NULL,
		steps INTEGER NOT NULL,
		duration_ms REAL NOT NULL
	)`

// Entry is one recorded generation
type Entry struct {
	ID          int64
	Time        time.Time
	Source      string // cli, server, interactive
	Prompt      string
	Output      string
	Temperature float64
	TopP        float64
	MaxLength   int
	StopReason  string
	Steps       int
	Duration    time.Duration
}

// Store is a generation log backed by SQLite
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends e to the log and returns its ID. A zero Time means now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO generations(ts, source, prompt, output, temperature, top_p, max_length, stop_reason, steps, duration_ms)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		float64(e.Time.UnixMilli())/1000.0,
		e.Source,
		e.Prompt,
		e.Output,
		e.Temperature,
		e.TopP,
		e.MaxLength,
		e.StopReason,
		e.Steps,
		float64(e.Duration.Microseconds())/1000.0,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record generation: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, source, prompt, output, temperature, top_p, max_length, stop_reason, steps, duration_ms
		FROM generations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			ts         float64
			durationMS float64
		)
		if err := rows.Scan(&e.ID, &ts, &e.Source, &e.Prompt, &e.Output, &e.Temperature,
			&e.TopP, &e.MaxLength, &e.StopReason, &e.Steps, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to read history row: %w", err)
		}
		e.Time = time.UnixMilli(int64(ts * 1000))
		e.Duration = time.Duration(durationMS * float64(time.Millisecond))
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of recorded generations
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM generations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// Clear deletes every recorded generation
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM generations"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
