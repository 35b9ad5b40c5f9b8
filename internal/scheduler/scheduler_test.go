package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/aristath/portfolio-qubo/internal/events"
	"github.com/aristath/portfolio-qubo/internal/metrics"
	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/aristath/portfolio-qubo/internal/modules/runs"
	testingpkg "github.com/aristath/portfolio-qubo/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	if j.panic {
		panic("job blew up")
	}
	return j.err
}

func (j *countingJob) Name() string {
	if j.name == "" {
		return "counting"
	}
	return j.name
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "hourly"}))
	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{name: "five_minutes"}))
	assert.ErrorContains(t, s.AddJob("not a schedule", &countingJob{name: "broken"}), "invalid schedule")
	assert.ErrorContains(t, s.AddJob("@every 2h", &countingJob{name: "hourly"}), "already registered")
	assert.Equal(t, 2, s.Jobs())

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "five_minutes", entries[0].Name)
	assert.Equal(t, "0 */5 * * * *", entries[0].Schedule)
	assert.Equal(t, "hourly", entries[1].Name)
	assert.True(t, entries[1].Next.IsZero())
}

func TestScheduler_RecoversPanics(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{panic: true}

	require.NoError(t, s.AddJob("@every 1s", job))
	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 4*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("job errors are logged, not fatal")}

	require.NoError(t, s.AddJob("@every 1s", job))
	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	assert.False(t, s.Entries()[0].Next.IsZero())
	s.Stop()
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}

func newRunService(t *testing.T, bus *events.Bus) *runs.Service {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t, "runs")
	t.Cleanup(cleanup)

	log := zerolog.Nop()
	return runs.NewService(
		runs.NewRepository(db.Conn(), log),
		qubo.NewEvaluator(qubo.Options{Workers: 2}, log),
		marketdata.NewService(nil, nil, log),
		events.NewManager(bus, log),
		metrics.NewRegistry(),
		nil,
		log,
	)
}

func TestSolveJob_StoresRun(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	service := newRunService(t, bus)

	job := NewSolveJob(service, events.NewManager(bus, zerolog.Nop()), SolveJobConfig{
		Assets:     []string{"AAA", "BBB", "CCC", "DDD"},
		Budget:     2,
		RiskFactor: 0.5,
		Seed:       123,
		Lookback:   90 * 24 * time.Hour,
	}, zerolog.Nop())
	job.now = func() time.Time { return time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, "scheduled_solve", job.Name())
	require.NoError(t, job.Run())

	list, err := service.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, runs.SourceRandom, list[0].Source)
	assert.Equal(t, runs.ModeMinimize, list[0].Mode)
	assert.Equal(t, 4.0, list[0].Params.PenaltyScale)
	assert.Equal(t, 16, list[0].Candidates)
}

func TestSolveJob_SkipsWhileRunning(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	job := NewSolveJob(nil, events.NewManager(bus, zerolog.Nop()), SolveJobConfig{}, zerolog.Nop())
	job.running.Store(true)

	require.NoError(t, job.Run())

	select {
	case e := <-ch:
		assert.Equal(t, events.ScheduledRunSkipped, e.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a skip event")
	}
}

func TestSolveJob_PropagatesErrors(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	job := NewSolveJob(newRunService(t, bus), events.NewManager(bus, zerolog.Nop()), SolveJobConfig{
		Assets:     []string{"AAA"},
		Budget:     3,
		RiskFactor: 0.5,
	}, zerolog.Nop())

	err := job.Run()
	assert.ErrorIs(t, err, qubo.ErrInvalidBudget)
	assert.False(t, job.running.Load())
}

func TestCachePurgeJob(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "cache")
	defer cleanup()

	cache := marketdata.NewCache(db.Conn(), time.Nanosecond, zerolog.Nop())
	require.NoError(t, cache.Put(context.Background(), "0123456789abcdef", &marketdata.Estimate{Assets: []string{"A"}}))
	time.Sleep(1100 * time.Millisecond)

	job := NewCachePurgeJob(cache, zerolog.Nop())
	assert.Equal(t, "estimate_cache_purge", job.Name())
	require.NoError(t, job.Run())

	_, ok := cache.Get(context.Background(), "0123456789abcdef")
	assert.False(t, ok)
}

func TestCheckDatabasesJob(t *testing.T) {
	runsDB, cleanupRuns := testingpkg.NewTestDB(t, "runs")
	defer cleanupRuns()
	cacheDB, cleanupCache := testingpkg.NewTestDB(t, "cache")
	defer cleanupCache()

	job := NewCheckDatabasesJob([]*database.DB{runsDB, nil, cacheDB}, nil, zerolog.Nop())
	assert.Equal(t, "check_databases", job.Name())
	assert.NoError(t, job.Run())
}

func TestCheckDatabasesJob_ReportsFailure(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "runs")
	cleanup()

	bus := events.NewBus(zerolog.Nop())
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	job := NewCheckDatabasesJob([]*database.DB{db}, events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database runs")

	select {
	case e := <-ch:
		assert.Equal(t, events.ErrorOccurred, e.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an error event")
	}
}

func TestCheckWALCheckpointsJob(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "history")
	defer cleanup()

	job := NewCheckWALCheckpointsJob([]*database.DB{nil, db}, zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
	assert.NoError(t, job.Run())

	// A closed database is logged and skipped
	cleanup()
	assert.NoError(t, job.Run())
}
