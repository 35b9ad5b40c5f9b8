package reliability

import (
	"context"
	"time"

	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/rs/zerolog"
)

const maintenanceTimeout = 30 * time.Minute

// BackupJob uploads a fresh backup and rotates expired ones
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "cloud_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "cloud_backup"
}

// Run creates the backup. A failed rotation is logged but does not fail the job.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	if _, err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// VacuumJob rebuilds databases whose contents churn (history imports, estimate cache)
type VacuumJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewVacuumJob creates a new vacuum job over the given databases
func NewVacuumJob(databases []*database.DB, log zerolog.Logger) *VacuumJob {
	return &VacuumJob{
		databases: databases,
		log:       log.With().Str("job", "vacuum_databases").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *VacuumJob) Name() string {
	return "vacuum_databases"
}

// Run vacuums every database. Failures are logged and the remaining databases
// are still processed.
func (j *VacuumJob) Run() error {
	j.log.Info().Msg("Starting weekly maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	failed := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := j.vacuumDatabase(ctx, db); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("VACUUM failed")
			failed++
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("failed", failed).
		Msg("Weekly maintenance completed")

	return nil
}

func (j *VacuumJob) vacuumDatabase(ctx context.Context, db *database.DB) error {
	before, err := db.SizeBytes(ctx)
	if err != nil {
		return err
	}
	if err := db.Vacuum(ctx); err != nil {
		return err
	}
	after, err := db.SizeBytes(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("database", db.Name()).
		Float64("size_before_mb", toMB(before)).
		Float64("size_after_mb", toMB(after)).
		Float64("space_reclaimed_mb", toMB(before-after)).
		Msg("VACUUM completed")

	return nil
}

func toMB(b int64) float64 {
	return float64(b) / 1024 / 1024
}
