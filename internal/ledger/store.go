// Package ledger persists run history in SQLite: one row per run, one row
// per executed stage. The directory-existence checks stay authoritative for
// idempotence; the ledger records what each run actually did so `asvprep
// status` can show it.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run outcomes.
const (
	OutcomeRunning   = "running"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Run is one pipeline invocation.
type Run struct {
	ID         string
	FirstStage int
	LastStage  int
	StartedAt  time.Time
	FinishedAt *time.Time
	Outcome    string
}

// StageResult is the recorded outcome of one stage within a run.
type StageResult struct {
	RunID      string
	Stage      int
	Name       string
	Outcome    string
	Duration   time.Duration
	Error      string
	FinishedAt time.Time
}

// Open initializes or connects to the ledger database.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}

	dbPath := filepath.Join(dir, "ledger.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applyMigrations(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            first_stage INTEGER NOT NULL,
            last_stage INTEGER NOT NULL,
            started_at TEXT NOT NULL,
            finished_at TEXT,
            outcome TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS stage_results (
            run_id TEXT NOT NULL REFERENCES runs(id),
            stage INTEGER NOT NULL,
            name TEXT NOT NULL,
            outcome TEXT NOT NULL,
            duration_ms INTEGER NOT NULL,
            error TEXT NOT NULL DEFAULT '',
            finished_at TEXT NOT NULL,
            PRIMARY KEY (run_id, stage)
        )`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// BeginRun records a new run in the running state.
func (s *Store) BeginRun(ctx context.Context, runID string, first, last int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, first_stage, last_stage, started_at, outcome) VALUES (?, ?, ?, ?, ?)`,
		runID, first, last, time.Now().UTC().Format(time.RFC3339Nano), OutcomeRunning,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps a run's final outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, outcome = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), outcome, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordStage persists the outcome of one stage within a run.
func (s *Store) RecordStage(ctx context.Context, result StageResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_results (run_id, stage, name, outcome, duration_ms, error, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Stage, result.Name, result.Outcome,
		result.Duration.Milliseconds(), result.Error,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_stage, last_stage, started_at, finished_at, outcome
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started string
		var finished sql.NullString
		if err := rows.Scan(&run.ID, &run.FirstStage, &run.LastStage, &started, &finished, &run.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse run timestamp: %w", err)
		}
		if finished.Valid {
			ts, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse run timestamp: %w", err)
			}
			run.FinishedAt = &ts
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StageResults returns the recorded stages of a run in stage order.
func (s *Store) StageResults(ctx context.Context, runID string) ([]StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, name, outcome, duration_ms, error, finished_at
         FROM stage_results WHERE run_id = ? ORDER BY stage`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stage results: %w", err)
	}
	defer rows.Close()

	var results []StageResult
	for rows.Next() {
		var result StageResult
		var durationMillis int64
		var finished string
		if err := rows.Scan(&result.RunID, &result.Stage, &result.Name, &result.Outcome, &durationMillis, &result.Error, &finished); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		result.Duration = time.Duration(durationMillis) * time.Millisecond
		if result.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse stage timestamp: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
