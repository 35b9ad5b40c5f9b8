package di

import (
	"context"
	"testing"

	"github.com/aristath/portfolio-qubo/internal/config"
	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/aristath/portfolio-qubo/internal/modules/runs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:   t.TempDir(),
		Port:      8090,
		MaxAssets: 20,
		Workers:   2,
		Archive:   &config.ArchiveConfig{},
	}
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	require.Len(t, container.Databases(), 3)
	assert.Equal(t, "runs", container.RunsDB.Name())
	assert.Equal(t, "history", container.HistoryDB.Name())
	assert.Equal(t, database.ProfileCache, container.CacheDB.Profile())

	for _, db := range container.Databases() {
		assert.NoError(t, db.HealthCheck(context.Background()), db.Name())
	}
}

func TestInitializeRepositories_RequiresDatabases(t *testing.T) {
	err := InitializeRepositories(&Container{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.RunRepo)
	assert.NotNil(t, container.HistoryProvider)
	assert.NotNil(t, container.EstimateCache)
	assert.NotNil(t, container.EventBus)
	assert.NotNil(t, container.EventManager)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.MarketDataService)
	assert.NotNil(t, container.RunService)
	assert.IsType(t, runs.NopArchiver{}, container.Archiver)
	assert.Nil(t, container.ObjectStore)
	assert.Nil(t, container.BackupService)

	assert.Equal(t, 2, container.Evaluator.Workers())
	assert.Equal(t, 20, container.Evaluator.MaxAssets())

	require.NotNil(t, jobs)
	assert.Nil(t, jobs.Solve)
	assert.NotNil(t, jobs.CachePurge)
	assert.NotNil(t, jobs.CheckDatabases)
	assert.NotNil(t, jobs.WALCheckpoints)
	assert.NotNil(t, jobs.Vacuum)
	assert.Nil(t, jobs.Backup)
	assert.Len(t, jobs.All(), 4)
	assert.Equal(t, 4, container.Scheduler.Jobs())

	for _, job := range jobs.All() {
		assert.NoError(t, job.Run(), job.Name())
	}
}

func TestWire_WithSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule = "0 0 * * * *"
	cfg.ScheduleAssets = []string{"AAA", "BBB", "CCC"}
	cfg.ScheduleBudget = 2
	cfg.ScheduleRiskFactor = 0.5

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, jobs.Solve)
	assert.Equal(t, "scheduled_solve", jobs.Solve.Name())
	assert.Equal(t, 5, container.Scheduler.Jobs())
}

func TestWire_WithArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive = &config.ArchiveConfig{
		Bucket:              "qubo",
		Prefix:              "runs/",
		Region:              "eu-west-1",
		Endpoint:            "http://localhost:9000",
		AccessKey:           "key",
		SecretKey:           "secret",
		BackupPrefix:        "backups/",
		BackupRetentionDays: 30,
	}

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, container.ObjectStore)
	assert.Equal(t, "qubo", container.ObjectStore.Bucket())
	assert.IsType(t, &runs.S3Archiver{}, container.Archiver)
	assert.NotNil(t, container.BackupService)

	require.NotNil(t, jobs.Backup)
	assert.Equal(t, "cloud_backup", jobs.Backup.Name())
	assert.Equal(t, 5, container.Scheduler.Jobs())
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule = "not a cron expression"
	cfg.ScheduleAssets = []string{"AAA"}
	cfg.ScheduleBudget = 1
	cfg.ScheduleRiskFactor = 0.5

	_, _, err := Wire(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register jobs")
}

func TestWire_SolvesEndToEnd(t *testing.T) {
	cfg := testConfig(t)

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	run, err := container.RunService.Solve(context.Background(), runs.SolveRequest{
		Mu:     []float64{0.1, 0.2},
		Sigma:  [][]float64{{0.04, 0.01}, {0.01, 0.09}},
		Params: qubo.Params{RiskFactor: 0.5, Budget: 1, PenaltyScale: 2},
	})
	require.NoError(t, err)

	stored, err := container.RunRepo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Best.Index)
	assert.Equal(t, []string{"asset_1"}, stored.Selected)
}

func TestContainerClose_Empty(t *testing.T) {
	assert.NoError(t, (&Container{}).Close())
}
