package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultListLimit is used when List is called with limit <= 0.
const DefaultListLimit = 50

// Repository handles run database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

// Create inserts a run. The score table is stored as a msgpack blob.
func (r *Repository) Create(ctx context.Context, run *Run) error {
	assetsJSON, err := json.Marshal(run.Assets)
	if err != nil {
		return fmt.Errorf("failed to encode assets: %w", err)
	}

	var table []byte
	if len(run.Table) > 0 {
		table, err = msgpack.Marshal(run.Table)
		if err != nil {
			return fmt.Errorf("failed to encode score table: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, source, mode, assets, risk_factor, budget, penalty_scale,
			best_index, best_objective, best_feasible,
			candidates, feasible_count, duration_ms, score_table, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Source, run.Mode, string(assetsJSON),
		run.Params.RiskFactor, run.Params.Budget, run.Params.PenaltyScale,
		run.Best.Index, run.Best.Objective, boolToInt(run.Best.Feasible),
		run.Candidates, run.FeasibleCount, run.DurationMs, table, run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Debug().Str("run_id", run.ID).Int("rows", len(run.Table)).Msg("Stored run")
	return nil
}

// GetByID returns a run including its score table
func (r *Repository) GetByID(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source, mode, assets, risk_factor, budget, penalty_scale,
			best_index, best_objective, best_feasible,
			candidates, feasible_count, duration_ms, score_table, created_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns the most recent runs, newest first, without score tables
func (r *Repository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, mode, assets, risk_factor, budget, penalty_scale,
			best_index, best_objective, best_feasible,
			candidates, feasible_count, duration_ms, NULL, created_at
		FROM runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows, false)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner, withTable bool) (*Run, error) {
	var (
		run          Run
		assetsJSON   string
		bestFeasible int
		table        []byte
		createdAt    int64
	)

	err := s.Scan(
		&run.ID, &run.Source, &run.Mode, &assetsJSON,
		&run.Params.RiskFactor, &run.Params.Budget, &run.Params.PenaltyScale,
		&run.Best.Index, &run.Best.Objective, &bestFeasible,
		&run.Candidates, &run.FeasibleCount, &run.DurationMs, &table, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if err := json.Unmarshal([]byte(assetsJSON), &run.Assets); err != nil {
		return nil, fmt.Errorf("failed to decode assets of run %s: %w", run.ID, err)
	}

	run.Best.Selection = qubo.Decode(run.Best.Index, len(run.Assets))
	run.Best.Count = run.Best.Selection.Count()
	run.Best.Feasible = bestFeasible == 1
	run.Best.Rank = 1
	run.Selected = selectedAssets(run.Assets, run.Best.Selection)
	run.CreatedAt = time.Unix(createdAt, 0).UTC()

	if withTable && len(table) > 0 {
		if err := msgpack.Unmarshal(table, &run.Table); err != nil {
			return nil, fmt.Errorf("failed to decode score table of run %s: %w", run.ID, err)
		}
	}

	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
