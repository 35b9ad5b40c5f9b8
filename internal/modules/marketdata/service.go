package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Data sources.
const (
	SourceRandom  = "random"
	SourceHistory = "history"
)

// Request describes the universe and window to estimate.
type Request struct {
	Source  string           `json:"source"` // "random" (default) or "history"
	Assets  []string         `json:"assets"`
	Start   time.Time        `json:"start"`
	End     time.Time        `json:"end"`
	Seed    int64            `json:"seed"` // random source only
	Options EstimatorOptions `json:"options"`
}

// CacheObserver is notified of every cache lookup.
type CacheObserver interface {
	CacheLookup(hit bool)
}

// Service resolves a Request into an Estimate, consulting the cache first.
type Service struct {
	history  *HistoryProvider
	cache    *Cache
	observer CacheObserver
	log      zerolog.Logger
}

// NewService creates a new market-data service. history and cache may be nil.
func NewService(history *HistoryProvider, cache *Cache, log zerolog.Logger) *Service {
	return &Service{
		history: history,
		cache:   cache,
		log:     log.With().Str("service", "marketdata").Logger(),
	}
}

// SetCacheObserver installs an observer for cache hits and misses.
func (s *Service) SetCacheObserver(o CacheObserver) {
	s.observer = o
}

// Estimate loads the series for req and returns mu and sigma.
func (s *Service) Estimate(ctx context.Context, req Request) (*Estimate, error) {
	if req.Source == "" {
		req.Source = SourceRandom
	}

	provider, err := s.provider(req)
	if err != nil {
		return nil, err
	}

	key := CacheKey(req)
	if s.cache != nil {
		est, ok := s.cache.Get(ctx, key)
		if s.observer != nil {
			s.observer.CacheLookup(ok)
		}
		if ok {
			s.log.Debug().Str("key", key[:8]).Int("assets", len(est.Assets)).Msg("Using cached estimate")
			return est, nil
		}
	}

	series, err := provider.Load(ctx, req.Assets, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s prices: %w", req.Source, err)
	}

	est, err := EstimateFromSeries(series, req.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate returns: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, est); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache estimate")
		}
	}

	s.log.Info().
		Str("source", req.Source).
		Int("assets", len(est.Assets)).
		Int("observations", est.Observations).
		Str("method", est.Method).
		Msg("Estimated returns and covariance")

	return est, nil
}

func (s *Service) provider(req Request) (Provider, error) {
	switch req.Source {
	case SourceRandom:
		return NewRandomProvider(req.Seed), nil
	case SourceHistory:
		if s.history == nil {
			return nil, fmt.Errorf("history source is not configured")
		}
		return s.history, nil
	default:
		return nil, fmt.Errorf("%w: unknown market data source %q", ErrInvalidRequest, req.Source)
	}
}
