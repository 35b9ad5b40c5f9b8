// Package runs persists solver runs and orchestrates them end to end: input
// resolution, evaluation, storage, events, metrics and archiving.
package runs

import (
	"errors"
	"time"

	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
)

// Input sources.
const (
	SourceInline  = "inline"
	SourceRandom  = marketdata.SourceRandom
	SourceHistory = marketdata.SourceHistory
)

// Evaluation modes.
const (
	// ModeTable builds the full ranked table (bounded by qubo.DefaultMaxAssets).
	ModeTable = "table"
	// ModeMinimize only keeps the best selection.
	ModeMinimize = "minimize"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrInvalidRequest = errors.New("invalid solve request")
)

// Run is one persisted solve.
type Run struct {
	ID     string      `json:"id"`
	Source string      `json:"source"`
	Mode   string      `json:"mode"`
	Assets []string    `json:"assets"`
	Params qubo.Params `json:"params"`

	Best qubo.ScoredSelection `json:"best"`
	// Selected names the assets held by Best.
	Selected []string `json:"selected"`

	Candidates    int       `json:"candidates"`
	FeasibleCount int       `json:"feasible_count"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`

	// Table holds the ranked rows kept for this run (all, or the first TopN).
	// Empty in minimize mode and in List results.
	Table []qubo.ScoredSelection `json:"table,omitempty"`
}

// SolveRequest describes a solve. Inline requests carry Mu and Sigma; market-data
// requests carry Assets and a date window instead.
type SolveRequest struct {
	Source string
	Mode   string

	Assets []string
	Mu     []float64
	Sigma  [][]float64

	Start     time.Time
	End       time.Time
	Seed      int64
	Estimator marketdata.EstimatorOptions

	Params qubo.Params
	// DefaultPenalty replaces Params.PenaltyScale with qubo.DefaultPenaltyScale(n).
	DefaultPenalty bool
	// TopN trims the stored table; 0 keeps every row.
	TopN int
}

func selectedAssets(assets []string, x qubo.Selection) []string {
	selected := make([]string, 0, x.Count())
	for i, v := range x {
		if v == 1 {
			selected = append(selected, assets[i])
		}
	}
	return selected
}
