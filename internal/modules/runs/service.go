package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/portfolio-qubo/internal/events"
	"github.com/aristath/portfolio-qubo/internal/metrics"
	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/combin"
)

const eventModule = "runs"

// archiveTimeout bounds a single archive upload.
const archiveTimeout = 30 * time.Second

// Service resolves, evaluates, stores and publishes solver runs
type Service struct {
	repo      *Repository
	evaluator *qubo.Evaluator
	market    *marketdata.Service
	events    *events.Manager
	metrics   *metrics.Registry
	archiver  Archiver
	log       zerolog.Logger
}

// NewService creates a new run service. archiver may be nil.
func NewService(
	repo *Repository,
	evaluator *qubo.Evaluator,
	market *marketdata.Service,
	eventManager *events.Manager,
	metricsRegistry *metrics.Registry,
	archiver Archiver,
	log zerolog.Logger,
) *Service {
	if archiver == nil {
		archiver = NopArchiver{}
	}
	return &Service{
		repo:      repo,
		evaluator: evaluator,
		market:    market,
		events:    eventManager,
		metrics:   metricsRegistry,
		archiver:  archiver,
		log:       log.With().Str("service", "runs").Logger(),
	}
}

// IsClientError reports whether err was caused by the request rather than the service.
func IsClientError(err error) bool {
	return qubo.IsValidationError(err) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, marketdata.ErrNoAssets) ||
		errors.Is(err, marketdata.ErrInvalidRange) ||
		errors.Is(err, marketdata.ErrInsufficientData) ||
		errors.Is(err, marketdata.ErrInvalidRequest)
}

// Solve runs one evaluation end to end and returns the stored run.
func (s *Service) Solve(ctx context.Context, req SolveRequest) (*Run, error) {
	started := time.Now()

	req, err := normalize(req)
	if err != nil {
		s.metrics.RunsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, err
	}

	assets, mu, sigma, err := s.resolve(ctx, req)
	if err != nil {
		s.metrics.RunsTotal.WithLabelValues(resultFor(err)).Inc()
		return nil, err
	}

	n := len(mu)
	params := req.Params
	if req.DefaultPenalty {
		params.PenaltyScale = qubo.DefaultPenaltyScale(n)
		s.log.Warn().
			Float64("penalty_scale", params.PenaltyScale).
			Float64("sufficient_penalty_scale", qubo.SufficientPenaltyScale(mu, sigma, params.RiskFactor)).
			Msg("No penalty scale given, using heuristic default")
	}

	run := &Run{
		ID:         uuid.New().String(),
		Source:     req.Source,
		Mode:       req.Mode,
		Assets:     assets,
		Params:     params,
		Candidates: 1 << uint(n),
		CreatedAt:  started.UTC(),
	}

	s.metrics.RunStarted(n)
	s.events.Emit(eventModule, &events.RunStartedData{
		RunID:      run.ID,
		Source:     run.Source,
		Assets:     n,
		Candidates: run.Candidates,
		Mode:       run.Mode,
	})

	progress := func(done, total int) {
		s.events.Emit(eventModule, &events.RunProgressData{RunID: run.ID, Done: done, Total: total})
	}

	switch req.Mode {
	case ModeTable:
		var table []qubo.ScoredSelection
		table, err = s.evaluator.EvaluateAllWithProgress(mu, sigma, params, progress)
		if err == nil {
			run.Best = table[0]
			if req.TopN > 0 && req.TopN < len(table) {
				table = table[:req.TopN]
			}
			run.Table = table
		}
	case ModeMinimize:
		run.Best, err = s.evaluator.MinimizeWithProgress(mu, sigma, params, progress)
	}
	if err != nil {
		return nil, s.fail(run, err, started)
	}

	run.Selected = selectedAssets(assets, run.Best.Selection)
	run.FeasibleCount = combin.Binomial(n, params.Budget)
	run.DurationMs = time.Since(started).Milliseconds()

	if err := s.repo.Create(ctx, run); err != nil {
		return nil, s.fail(run, err, started)
	}

	archiveCtx, cancel := context.WithTimeout(ctx, archiveTimeout)
	if err := s.archiver.Archive(archiveCtx, run); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to archive run")
	}
	cancel()

	result := metrics.ResultSuccess
	if !run.Best.Feasible {
		result = metrics.ResultInfeasible
		s.log.Warn().
			Str("run_id", run.ID).
			Int("selected", run.Best.Count).
			Int("budget", params.Budget).
			Msg("Best selection violates the budget, penalty scale is too small")
	}
	s.metrics.RunFinished(run.Mode, result, run.Candidates, time.Since(started))

	s.events.Emit(eventModule, &events.RunCompletedData{
		RunID:         run.ID,
		BestIndex:     run.Best.Index,
		BestObjective: run.Best.Objective,
		Feasible:      run.Best.Feasible,
		DurationMs:    run.DurationMs,
	})

	s.log.Info().
		Str("run_id", run.ID).
		Str("source", run.Source).
		Str("mode", run.Mode).
		Int("assets", n).
		Strs("selected", run.Selected).
		Float64("objective", run.Best.Objective).
		Int64("duration_ms", run.DurationMs).
		Msg("Run completed")

	return run, nil
}

// Get returns a stored run
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns recent runs without their tables
func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	return s.repo.List(ctx, limit)
}

// Delete removes a stored run
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) fail(run *Run, err error, started time.Time) error {
	s.metrics.RunFinished(run.Mode, resultFor(err), run.Candidates, time.Since(started))
	s.events.Emit(eventModule, &events.RunFailedData{RunID: run.ID, Error: err.Error()})
	s.log.Error().Err(err).Str("run_id", run.ID).Msg("Run failed")
	return err
}

func (s *Service) resolve(ctx context.Context, req SolveRequest) ([]string, []float64, [][]float64, error) {
	if req.Source == SourceInline {
		assets := req.Assets
		if len(assets) == 0 {
			assets = make([]string, len(req.Mu))
			for i := range assets {
				assets[i] = fmt.Sprintf("asset_%d", i)
			}
		}
		if len(assets) != len(req.Mu) {
			return nil, nil, nil, fmt.Errorf("%w: %d asset names for %d expected returns",
				ErrInvalidRequest, len(assets), len(req.Mu))
		}
		return assets, req.Mu, req.Sigma, nil
	}

	if s.market == nil {
		return nil, nil, nil, fmt.Errorf("market data is not configured")
	}
	est, err := s.market.Estimate(ctx, marketdata.Request{
		Source:  req.Source,
		Assets:  req.Assets,
		Start:   req.Start,
		End:     req.End,
		Seed:    req.Seed,
		Options: req.Estimator,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return est.Assets, est.Mu, est.Sigma, nil
}

func normalize(req SolveRequest) (SolveRequest, error) {
	if req.Source == "" {
		if len(req.Mu) > 0 {
			req.Source = SourceInline
		} else {
			req.Source = SourceRandom
		}
	}
	switch req.Source {
	case SourceInline, SourceRandom, SourceHistory:
	default:
		return req, fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, req.Source)
	}

	if req.Mode == "" {
		req.Mode = ModeTable
	}
	if req.Mode != ModeTable && req.Mode != ModeMinimize {
		return req, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}

	if req.TopN < 0 {
		return req, fmt.Errorf("%w: top must be >= 0, got %d", ErrInvalidRequest, req.TopN)
	}

	if req.Source != SourceInline && (req.Start.IsZero() || req.End.IsZero()) {
		return req, fmt.Errorf("%w: start and end dates are required for source %q", ErrInvalidRequest, req.Source)
	}

	return req, nil
}

func resultFor(err error) string {
	if IsClientError(err) {
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}
