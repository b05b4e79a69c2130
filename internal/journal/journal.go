// Package journal persists startup runs and their step outcomes to a local
// SQLite database so past boots can be inspected with `modelboot history`.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"modelboot/pkg/types"
)

// Journal is a SQLite-backed record of sequencer runs.
type Journal struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := j.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) Ping(ctx context.Context) error {
	if j.db == nil {
		return errors.New("db not initialized")
	}
	return j.db.PingContext(ctx)
}

// BeginRun inserts a new run row.
func (j *Journal) BeginRun(ctx context.Context, id, model string, startedAt time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, model, started_at) VALUES (?, ?, ?)`,
		id, model, startedAt.UTC())
	return err
}

// RecordStep appends one step outcome to a run.
func (j *Journal) RecordStep(ctx context.Context, runID string, step types.StepStatus) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, name, outcome, exit_code, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, step.Name, step.Outcome, step.ExitCode, step.Error, step.StartedAt.UTC(), step.DurationMS)
	return err
}

// FinishRun closes out a run with its final state and exit code.
func (j *Journal) FinishRun(ctx context.Context, id string, state string, exitCode int, finishedAt time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, exit_code = ?, finished_at = ? WHERE id = ?`,
		state, exitCode, finishedAt.UTC(), id)
	return err
}

// Runs lists the most recent runs, newest first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, model, state, exit_code, started_at, COALESCE(finished_at, started_at)
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.RunRecord
	for rows.Next() {
		var r types.RunRecord
		if err := rows.Scan(&r.ID, &r.Model, &r.State, &r.ExitCode, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Steps lists the step outcomes of one run in execution order.
func (j *Journal) Steps(ctx context.Context, runID string) ([]types.StepStatus, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT name, outcome, exit_code, error, started_at, duration_ms
		 FROM steps WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.StepStatus
	for rows.Next() {
		var s types.StepStatus
		if err := rows.Scan(&s.Name, &s.Outcome, &s.ExitCode, &s.Error, &s.StartedAt, &s.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
