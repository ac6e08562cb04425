// Package store handles SQLite persistence of the run history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/sprint/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout keeps every timestamp the same width so text order matches time
// order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for run data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			typed INTEGER NOT NULL,
			mistakes INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			cpm INTEGER NOT NULL,
			completed INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a finished run and returns its ID. A new ID is assigned
// when run.ID is empty.
func (s *Store) InsertRun(ctx context.Context, run model.RunStats) (string, error) {
	id := run.ID
	if id == "" {
		id = uuid.NewString()
	}
	completed := 0
	if run.Completed {
		completed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, started_at, ended_at, typed, mistakes, duration_ms, cpm, completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		run.Name,
		run.StartedAt.UTC().Format(timeLayout),
		run.EndedAt.UTC().Format(timeLayout),
		run.Typed,
		run.Mistakes,
		run.Duration.Milliseconds(),
		run.CPM,
		completed,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns runs in chronological order, optionally filtered by name
// and limited to the most recent filter.Last entries.
func (s *Store) ListRuns(ctx context.Context, filter model.HistoryFilter) ([]model.RunStats, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, filter.Name)
	}
	limit := -1
	if filter.Last > 0 {
		limit = filter.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT id, name, started_at, ended_at, typed, mistakes, duration_ms, cpm, completed
		FROM (
			SELECT * FROM runs
			WHERE %s
			ORDER BY ended_at DESC
			LIMIT ?
		)
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunStats
	for rows.Next() {
		var run model.RunStats
		var startedAt, endedAt string
		var durationMs int64
		var completed int
		if err := rows.Scan(&run.ID, &run.Name, &startedAt, &endedAt, &run.Typed, &run.Mistakes, &durationMs, &run.CPM, &completed); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if run.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.Completed = completed != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
