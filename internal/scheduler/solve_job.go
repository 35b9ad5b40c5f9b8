package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aristath/portfolio-qubo/internal/events"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/aristath/portfolio-qubo/internal/modules/runs"
	"github.com/rs/zerolog"
)

// DefaultLookback is the price window used by scheduled solves.
const DefaultLookback = 365 * 24 * time.Hour

// solveTimeout bounds one scheduled solve.
const solveTimeout = 30 * time.Minute

// SolveJobConfig describes the scheduled universe.
type SolveJobConfig struct {
	Assets     []string
	Budget     int
	RiskFactor float64
	Seed       int64
	Lookback   time.Duration
	// Mode defaults to minimize so large universes stay cheap.
	Mode string
}

// SolveJob periodically solves the configured universe from synthetic market data.
// Overlapping invocations are skipped rather than queued.
type SolveJob struct {
	service *runs.Service
	events  *events.Manager
	cfg     SolveJobConfig
	running atomic.Bool
	now     func() time.Time
	log     zerolog.Logger
}

// NewSolveJob creates a new scheduled solve job
func NewSolveJob(service *runs.Service, eventManager *events.Manager, cfg SolveJobConfig, log zerolog.Logger) *SolveJob {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.Mode == "" {
		cfg.Mode = runs.ModeMinimize
	}
	return &SolveJob{
		service: service,
		events:  eventManager,
		cfg:     cfg,
		now:     time.Now,
		log:     log.With().Str("job", "scheduled_solve").Logger(),
	}
}

// Name returns the job name
func (j *SolveJob) Name() string {
	return "scheduled_solve"
}

// Run executes one solve
func (j *SolveJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.events.Emit("scheduler", &events.ScheduledRunSkippedData{Reason: "previous solve still running"})
		j.log.Warn().Msg("Previous scheduled solve still running, skipping")
		return nil
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), solveTimeout)
	defer cancel()

	end := j.now().UTC()
	run, err := j.service.Solve(ctx, runs.SolveRequest{
		Source:         runs.SourceRandom,
		Mode:           j.cfg.Mode,
		Assets:         j.cfg.Assets,
		Start:          end.Add(-j.cfg.Lookback),
		End:            end,
		Seed:           j.cfg.Seed,
		Params:         qubo.Params{RiskFactor: j.cfg.RiskFactor, Budget: j.cfg.Budget},
		DefaultPenalty: true,
	})
	if err != nil {
		return fmt.Errorf("scheduled solve failed: %w", err)
	}

	j.log.Info().
		Str("run_id", run.ID).
		Strs("selected", run.Selected).
		Float64("objective", run.Best.Objective).
		Msg("Scheduled solve completed")
	return nil
}
