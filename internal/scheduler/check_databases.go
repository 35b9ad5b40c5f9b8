package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/aristath/portfolio-qubo/internal/events"
	"github.com/rs/zerolog"
)

// CheckDatabasesJob verifies integrity of the SQLite databases
type CheckDatabasesJob struct {
	databases []*database.DB
	events    *events.Manager
	log       zerolog.Logger
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob. eventManager may be nil.
func NewCheckDatabasesJob(databases []*database.DB, eventManager *events.Manager, log zerolog.Logger) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		databases: databases,
		events:    eventManager,
		log:       log.With().Str("job", "check_databases").Logger(),
	}
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run executes the integrity check
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, db := range j.databases {
		if db == nil {
			continue
		}

		if err := db.IntegrityCheck(ctx); err != nil {
			// Corruption cannot be repaired automatically
			j.log.Error().
				Err(err).
				Str("database", db.Name()).
				Msg("Database integrity check failed")
			if j.events != nil {
				j.events.EmitError("scheduler", err, map[string]interface{}{"database": db.Name()})
			}
			return fmt.Errorf("database %s is corrupted: %w", db.Name(), err)
		}

		j.log.Debug().Str("database", db.Name()).Msg("Database integrity OK")
	}

	j.log.Info().Int("checked", len(j.databases)).Msg("Database integrity check passed")
	return nil
}
