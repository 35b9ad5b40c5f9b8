package scheduler

import (
	"context"
	"time"

	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/rs/zerolog"
)

// CachePurgeJob deletes expired market-data estimates
type CachePurgeJob struct {
	cache *marketdata.Cache
	log   zerolog.Logger
}

// NewCachePurgeJob creates a new cache purge job
func NewCachePurgeJob(cache *marketdata.Cache, log zerolog.Logger) *CachePurgeJob {
	return &CachePurgeJob{
		cache: cache,
		log:   log.With().Str("job", "estimate_cache_purge").Logger(),
	}
}

// Name returns the job name
func (j *CachePurgeJob) Name() string {
	return "estimate_cache_purge"
}

// Run executes the purge
func (j *CachePurgeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := j.cache.Purge(ctx)
	if err != nil {
		return err
	}
	if purged > 0 {
		j.log.Info().Int64("purged", purged).Msg("Purged expired estimates")
	}
	return nil
}
