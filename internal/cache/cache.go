// Package cache implements the read-through (cache-aside) layer that shields
// the ledger and content store from redundant lookups.
//
// Every operation degrades to a pass-through when the redis backend is absent
// or failing: Get reports a miss, Set and Delete become logged no-ops. The
// cache never blocks or fails a caller.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/metrics"
)

// Cache is a redis-backed cache-aside wrapper with hit/miss accounting.
type Cache struct {
	client  redis.UniversalClient
	logger  logger.Logger
	metrics *metrics.Metrics

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Deletes int64   `json:"deletes"`
	HitRate float64 `json:"hit_rate"`
}

// New creates a Cache. A nil client yields a permanently degraded cache that
// still satisfies every call.
func New(client redis.UniversalClient, log logger.Logger, m *metrics.Metrics) *Cache {
	return &Cache{client: client, logger: log, metrics: m}
}

// Get unmarshals the cached value for key into dest and reports whether it
// was a hit. Backend errors are misses.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c.client == nil {
		c.miss()
		return false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed, treating as miss",
				logger.String("key", key), logger.Error(err))
		}
		c.miss()
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("cache entry undecodable, treating as miss",
			logger.String("key", key), logger.Error(err))
		c.miss()
		return false
	}

	c.hits.Add(1)
	c.metrics.RecordCacheHit()
	return true
}

// Set stores value under key with the given TTL. The returned error is
// informational; callers are expected to continue on failure.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed",
			logger.String("key", key), logger.Error(err))
		return err
	}

	c.sets.Add(1)
	c.metrics.RecordCacheSet()
	return nil
}

// Delete invalidates keys. Like Set, failures are reported but expected to be
// swallowed by the caller.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache delete failed",
			logger.Any("keys", keys), logger.Error(err))
		return err
	}

	c.deletes.Add(int64(len(keys)))
	for range keys {
		c.metrics.RecordCacheDelete()
	}
	return nil
}

// GetOrSet returns the cached value for key into dest on a hit; on a miss it
// invokes fetch, stores the result with the TTL, and unmarshals it into dest.
func (c *Cache) GetOrSet(
	ctx context.Context,
	key string,
	ttl time.Duration,
	dest any,
	fetch func(context.Context) (any, error),
) error {
	if c.Get(ctx, key, dest) {
		return nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return err
	}

	// Best-effort store; the fetched value is authoritative either way.
	_ = c.Set(ctx, key, value, ttl)

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Stats returns the in-process counters with the derived hit rate.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
		HitRate: rate,
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	c.metrics.RecordCacheMiss()
}
