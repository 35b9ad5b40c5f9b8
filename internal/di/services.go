package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/portfolio-qubo/internal/clients/objectstore"
	"github.com/aristath/portfolio-qubo/internal/config"
	"github.com/aristath/portfolio-qubo/internal/events"
	"github.com/aristath/portfolio-qubo/internal/metrics"
	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/aristath/portfolio-qubo/internal/modules/runs"
	"github.com/aristath/portfolio-qubo/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the data-access layer over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.RunsDB == nil || container.HistoryDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}

	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)
	container.HistoryProvider = marketdata.NewHistoryProvider(container.HistoryDB.Conn(), log)
	container.EstimateCache = marketdata.NewCache(container.CacheDB.Conn(), marketdata.DefaultCacheTTL, log)

	log.Debug().Msg("Repositories initialized")
	return nil
}

// InitializeServices creates infrastructure and business services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	container.Metrics = metrics.NewRegistry()

	container.Evaluator = qubo.NewEvaluator(qubo.Options{
		Workers:   cfg.Workers,
		MaxAssets: cfg.MaxAssets,
	}, log)

	container.MarketDataService = marketdata.NewService(container.HistoryProvider, container.EstimateCache, log)
	container.MarketDataService.SetCacheObserver(container.Metrics)

	container.Archiver = runs.NopArchiver{}
	if cfg.Archive.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := objectstore.New(ctx, cfg.Archive, log)
		if err != nil {
			return fmt.Errorf("failed to initialize object store: %w", err)
		}
		container.ObjectStore = store
		container.Archiver = runs.NewS3Archiver(store, cfg.Archive.Prefix, log)
		container.BackupService = reliability.NewBackupService(
			container.Databases(),
			store,
			cfg.Archive.BackupPrefix,
			cfg.DataDir,
			log,
		)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Run archiving and backups enabled")
	}

	container.RunService = runs.NewService(
		container.RunRepo,
		container.Evaluator,
		container.MarketDataService,
		container.EventManager,
		container.Metrics,
		container.Archiver,
		log,
	)

	log.Info().
		Int("workers", container.Evaluator.Workers()).
		Int("max_assets", container.Evaluator.MaxAssets()).
		Msg("Services initialized")
	return nil
}
