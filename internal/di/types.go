// Package di provides dependency injection wiring and initialization.
package di

import (
	"errors"

	"github.com/aristath/portfolio-qubo/internal/clients/objectstore"
	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/aristath/portfolio-qubo/internal/events"
	"github.com/aristath/portfolio-qubo/internal/metrics"
	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/aristath/portfolio-qubo/internal/modules/runs"
	"github.com/aristath/portfolio-qubo/internal/reliability"
	"github.com/aristath/portfolio-qubo/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire() and passed to the server and jobs.
type Container struct {
	// Databases
	RunsDB    *database.DB
	HistoryDB *database.DB
	CacheDB   *database.DB

	// Repositories and stores
	RunRepo         *runs.Repository
	HistoryProvider *marketdata.HistoryProvider
	EstimateCache   *marketdata.Cache

	// Infrastructure
	EventBus     *events.Bus
	EventManager *events.Manager
	Metrics      *metrics.Registry
	ObjectStore  *objectstore.Client // nil when archiving is disabled
	Archiver     runs.Archiver
	Scheduler    *scheduler.Scheduler

	// Services
	Evaluator         *qubo.Evaluator
	MarketDataService *marketdata.Service
	RunService        *runs.Service
	BackupService     *reliability.BackupService // nil when archiving is disabled
}

// Databases returns every open database
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.RunsDB, c.HistoryDB, c.CacheDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes all databases
func (c *Container) Close() error {
	var errs []error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JobInstances holds the registered background jobs.
// Solve is nil when no schedule is configured, Backup when archiving is disabled.
type JobInstances struct {
	Solve          *scheduler.SolveJob
	CachePurge     *scheduler.CachePurgeJob
	CheckDatabases *scheduler.CheckDatabasesJob
	WALCheckpoints *scheduler.CheckWALCheckpointsJob
	Vacuum         *reliability.VacuumJob
	Backup         *reliability.BackupJob
}

// All returns the registered jobs, skipping disabled ones
func (j *JobInstances) All() []scheduler.Job {
	var all []scheduler.Job
	if j.Solve != nil {
		all = append(all, j.Solve)
	}
	if j.CachePurge != nil {
		all = append(all, j.CachePurge)
	}
	if j.CheckDatabases != nil {
		all = append(all, j.CheckDatabases)
	}
	if j.WALCheckpoints != nil {
		all = append(all, j.WALCheckpoints)
	}
	if j.Vacuum != nil {
		all = append(all, j.Vacuum)
	}
	if j.Backup != nil {
		all = append(all, j.Backup)
	}
	return all
}
