// Package store persists weighting runs and their per-event results in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/leptonweighter/leptonweighter/lw"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// Store wraps SQLite access for weighting runs.
type Store struct {
	db *sql.DB
}

// Run is one invocation of the weighter over an event batch.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time // zero until FinishRun
	Description string    // generation description path
	Events      int
	Failed      int
	SumWeights  float64
	EffectiveN  float64
}

// StoredResult is a persisted per-event outcome. ErrorKind is lw.ErrorKind of the
// original error; both error fields are empty for weighted events.
type StoredResult struct {
	Index     int
	Weight    float64
	OneWeight float64
	ErrorKind string
	Error     string
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			events INTEGER NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			sum_weights REAL NOT NULL DEFAULT 0,
			effective_n REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			weight REAL,
			oneweight REAL,
			error_kind TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, idx),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_error_kind ON results(run_id, error_kind);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun records a new run and returns it with a fresh ID.
func (s *Store) BeginRun(ctx context.Context, description string, events int) (Run, error) {
	run := Run{
		ID:          uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Description: description,
		Events:      events,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, description, events) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(time.RFC3339Nano), run.Description, run.Events)
	if err != nil {
		return Run{}, fmt.Errorf("store: begin run: %w", err)
	}
	return run, nil
}

// SaveResults writes per-event results of a run in one transaction.
func (s *Store) SaveResults(ctx context.Context, runID string, results []lw.Result) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save results: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, idx, weight, oneweight, error_kind, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: save results: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range results {
		var weight, oneWeight sql.NullFloat64
		var kind, msg string
		if r.Err != nil {
			kind, msg = lw.ErrorKind(r.Err), r.Err.Error()
		} else {
			weight = sql.NullFloat64{Float64: r.Weight, Valid: true}
			oneWeight = sql.NullFloat64{Float64: r.OneWeight, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, runID, r.Index, weight, oneWeight, kind, msg); err != nil {
			return fmt.Errorf("store: save result %d: %w", r.Index, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: save results: %w", err)
	}
	return nil
}

// FinishRun records the end time and batch totals of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, summary *lw.BatchSummary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, failed = ?, sum_weights = ?, effective_n = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), summary.Failed, summary.SumWeights, summary.EffectiveSampleSize(), runID)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, description, events, failed, sum_weights, effective_n`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run               Run
		started, finished string
	)
	if err := row.Scan(&run.ID, &started, &finished, &run.Description, &run.Events, &run.Failed, &run.SumWeights, &run.EffectiveN); err != nil {
		return Run{}, err
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("run %s started_at: %w", run.ID, err)
	}
	if finished != "" {
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return Run{}, fmt.Errorf("run %s finished_at: %w", run.ID, err)
		}
	}
	return run, nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("store: run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: get run: %w", err)
	}
	return run, nil
}

// ListRuns returns every recorded run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list runs: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// RunWeights returns the stored results of a run ordered by event index.
func (s *Store) RunWeights(ctx context.Context, runID string) ([]StoredResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, weight, oneweight, error_kind, error FROM results WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: run weights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredResult
	for rows.Next() {
		var (
			r                 StoredResult
			weight, oneWeight sql.NullFloat64
		)
		if err := rows.Scan(&r.Index, &weight, &oneWeight, &r.ErrorKind, &r.Error); err != nil {
			return nil, fmt.Errorf("store: run weights: %w", err)
		}
		r.Weight, r.OneWeight = weight.Float64, oneWeight.Float64
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: run weights: %w", err)
	}
	return out, nil
}
