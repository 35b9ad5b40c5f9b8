package marketdata

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultCacheTTL is how long cached estimates stay valid.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores estimates in the cache database (estimate_cache table).
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// NewCache creates a new estimate cache. ttl <= 0 uses DefaultCacheTTL.
func NewCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		db:  db,
		ttl: ttl,
		now: time.Now,
		log: log.With().Str("component", "estimate_cache").Logger(),
	}
}

// CacheKey derives a deterministic key from the request. Asset order is part of the
// key because it fixes the index order of mu and sigma.
func CacheKey(req Request) string {
	opts, _ := req.Options.normalized()
	keyData := fmt.Sprintf("%s|%s|%s|%s|%d|%s|%d|%t",
		req.Source,
		strings.Join(req.Assets, ","),
		req.Start.UTC().Format(DateLayout),
		req.End.UTC().Format(DateLayout),
		req.Seed,
		opts.Method,
		opts.EMAPeriod,
		opts.Shrinkage,
	)
	h := sha256.Sum256([]byte(keyData))
	return hex.EncodeToString(h[:16])
}

// Get returns a cached estimate if present and not expired.
func (c *Cache) Get(ctx context.Context, key string) (*Estimate, bool) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM estimate_cache WHERE cache_key = ? AND expires_at > ?",
		key, c.now().Unix(),
	).Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			c.log.Warn().Err(err).Str("key", key[:8]).Msg("Failed to read cached estimate")
		}
		return nil, false
	}

	var est Estimate
	if err := msgpack.Unmarshal(payload, &est); err != nil {
		c.log.Warn().Err(err).Str("key", key[:8]).Msg("Failed to decode cached estimate, ignoring")
		return nil, false
	}
	return &est, true
}

// Put stores an estimate under key.
func (c *Cache) Put(ctx context.Context, key string, est *Estimate) error {
	payload, err := msgpack.Marshal(est)
	if err != nil {
		return fmt.Errorf("failed to encode estimate: %w", err)
	}

	now := c.now()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO estimate_cache (cache_key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key, payload, now.Unix(), now.Add(c.ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to store estimate: %w", err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM estimate_cache WHERE expires_at <= ?", c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge estimate cache: %w", err)
	}
	return res.RowsAffected()
}
