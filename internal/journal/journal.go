// Package journal keeps a local SQLite history of acquisition sessions.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"drgex/internal/collector"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one recorded session
type Entry struct {
	ID        int64
	StartedAt time.Time
	Port      string
	Duration  time.Duration
	Samples   int
	Rate      int
	Errors    int
	Complete  bool
	Output    string // Exported sample file, empty when nothing was saved
}

// EntryFromCapture describes a finished capture saved to output.
func EntryFromCapture(c *collector.Capture, output string) Entry {
	return Entry{
		StartedAt: c.StartedAt,
		Port:      c.Port,
		Duration:  c.Duration,
		Samples:   len(c.Samples),
		Rate:      c.DisplayRate(),
		Errors:    c.ErrorCount,
		Complete:  c.Complete,
		Output:    output,
	}
}

// Store handles database operations
type Store struct {
	path string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// Open returns a store backed by the database at path. The file is created
// and migrated on first use.
func Open(path string) *Store {
	return &Store{path: path}
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_synchronous=NORMAL")
		if err != nil {
			s.dbErr = err
			return
		}
		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

const insertCaptureSQL = `
INSERT INTO captures (started_at, port, duration_ms, samples, rate, errors, complete, output)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Record stores e and returns its ID.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, fmt.Errorf("opening journal: %w", err)
	}

	output := sql.NullString{String: e.Output, Valid: e.Output != ""}
	result, err := db.ExecContext(ctx, insertCaptureSQL,
		e.StartedAt.UTC(), e.Port, e.Duration.Milliseconds(),
		e.Samples, e.Rate, e.Errors, e.Complete, output)
	if err != nil {
		return 0, fmt.Errorf("inserting capture: %w", err)
	}
	return result.LastInsertId()
}

const selectCapturesSQL = `
SELECT
    id,
    started_at,
    port,
    duration_ms,
    samples,
    rate,
    errors,
    complete,
    output
FROM captures
ORDER BY started_at DESC, id DESC
LIMIT ?`

// List returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) (entries []Entry, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, selectCapturesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("querying captures: %w", err)
	}
	defer func() {
		if cErr := rows.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cErr)
		}
	}()

	for rows.Next() {
		var (
			e          Entry
			durationMs int64
			output     sql.NullString
		)
		if err = rows.Scan(&e.ID, &e.StartedAt, &e.Port, &durationMs,
			&e.Samples, &e.Rate, &e.Errors, &e.Complete, &output); err != nil {
			return nil, fmt.Errorf("scanning capture: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.Output = output.String
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating captures: %w", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}
