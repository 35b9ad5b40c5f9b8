package scheduler

import (
	"context"
	"time"

	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size, in frames, above which a checkpoint is overdue.
const walWarnFrames = 1000

// CheckWALCheckpointsJob runs a passive WAL checkpoint and reports WAL growth
type CheckWALCheckpointsJob struct {
	databases []*database.DB
	log       zerolog.Logger
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob
func NewCheckWALCheckpointsJob(databases []*database.DB, log zerolog.Logger) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		databases: databases,
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the checkpoint. Failures are logged, never fatal.
func (j *CheckWALCheckpointsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	checkedCount := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		res, err := db.Checkpoint(ctx)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		switch {
		case res.Busy:
			j.log.Debug().Str("database", db.Name()).Msg("Checkpoint blocked by a reader")
		case res.WALFrames > walWarnFrames:
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", res.WALFrames).
				Int("checkpointed", res.Checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		default:
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", res.WALFrames).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Info().
		Int("checked", checkedCount).
		Msg("WAL checkpoint check completed")

	return nil
}
