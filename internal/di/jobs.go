package di

import (
	"fmt"

	"github.com/aristath/portfolio-qubo/internal/config"
	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/aristath/portfolio-qubo/internal/reliability"
	"github.com/aristath/portfolio-qubo/internal/scheduler"
	"github.com/rs/zerolog"
)

// Maintenance schedules (seconds-resolution cron)
const (
	cachePurgeSchedule     = "0 0 3 * * *"    // Daily at 03:00
	checkDatabasesSchedule = "0 30 3 * * *"   // Daily at 03:30
	walCheckpointSchedule  = "0 */30 * * * *" // Every 30 minutes
	backupSchedule         = "0 0 4 * * *"    // Daily at 04:00
	vacuumSchedule         = "0 0 5 * * SUN"  // Sundays at 05:00
)

// RegisterJobs creates the scheduler and registers background jobs.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)
	jobs := &JobInstances{}

	jobs.CachePurge = scheduler.NewCachePurgeJob(container.EstimateCache, log)
	if err := container.Scheduler.AddJob(cachePurgeSchedule, jobs.CachePurge); err != nil {
		return nil, fmt.Errorf("failed to register cache purge job: %w", err)
	}

	jobs.CheckDatabases = scheduler.NewCheckDatabasesJob(container.Databases(), container.EventManager, log)
	if err := container.Scheduler.AddJob(checkDatabasesSchedule, jobs.CheckDatabases); err != nil {
		return nil, fmt.Errorf("failed to register database check job: %w", err)
	}

	jobs.WALCheckpoints = scheduler.NewCheckWALCheckpointsJob(container.Databases(), log)
	if err := container.Scheduler.AddJob(walCheckpointSchedule, jobs.WALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	// Runs are append-only; only churning databases are rebuilt
	jobs.Vacuum = reliability.NewVacuumJob([]*database.DB{container.HistoryDB, container.CacheDB}, log)
	if err := container.Scheduler.AddJob(vacuumSchedule, jobs.Vacuum); err != nil {
		return nil, fmt.Errorf("failed to register vacuum job: %w", err)
	}

	if container.BackupService != nil {
		jobs.Backup = reliability.NewBackupJob(container.BackupService, cfg.Archive.BackupRetentionDays, log)
		if err := container.Scheduler.AddJob(backupSchedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	if cfg.Schedule != "" {
		jobs.Solve = scheduler.NewSolveJob(container.RunService, container.EventManager, scheduler.SolveJobConfig{
			Assets:     cfg.ScheduleAssets,
			Budget:     cfg.ScheduleBudget,
			RiskFactor: cfg.ScheduleRiskFactor,
			Seed:       cfg.MarketSeed,
		}, log)
		if err := container.Scheduler.AddJob(cfg.Schedule, jobs.Solve); err != nil {
			return nil, fmt.Errorf("failed to register scheduled solve %q: %w", cfg.Schedule, err)
		}
	}

	log.Info().Int("jobs", container.Scheduler.Jobs()).Msg("Jobs registered")
	return jobs, nil
}
