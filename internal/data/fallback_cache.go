package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"TradeGuard/internal/conf"
	"TradeGuard/pkg/resilience"
)

// FallbackCache is the ValueCache handed to cache fallbacks: an in-process
// expirable LRU fronting Redis. Writes go to both tiers; reads prefer the
// LRU and warm it from Redis on a miss. Redis failures degrade to LRU-only.
//
// Values recovered from the Redis tier come back as json.RawMessage since the
// original Go type is not stored. Fallback consumers decode as needed.
type FallbackCache struct {
	lru    *resilience.LRUValueCache
	remote CacheClient
	ttl    time.Duration
	logger *log.Helper
}

var _ resilience.ValueCache = (*FallbackCache)(nil)

// NewFallbackCache creates the two-tier fallback value cache.
func NewFallbackCache(c *conf.Resilience, data *Data, logger log.Logger) *FallbackCache {
	size := 512
	ttl := 10 * time.Minute
	if c != nil {
		if c.CacheSize > 0 {
			size = c.CacheSize
		}
		if c.CacheTTL > 0 {
			ttl = c.CacheTTL
		}
	}
	return &FallbackCache{
		lru:    resilience.NewLRUValueCache(size, ttl),
		remote: data.GetCache(),
		ttl:    ttl,
		logger: log.NewHelper(logger),
	}
}

// Get returns the last known good value for key, if any.
func (c *FallbackCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if v, ok := c.lru.Get(ctx, key); ok {
		return v, true
	}

	var raw json.RawMessage
	if err := c.remote.Get(ctx, BuildCacheKey(CacheKeyFallback, key), &raw); err != nil {
		if err != ErrCacheNotFound {
			c.logger.Debugw("fallback cache redis miss", "key", key, "error", err)
		}
		return nil, false
	}

	// Warm the LRU so repeated fallbacks stay in-process.
	c.lru.Set(ctx, key, raw)
	return raw, true
}

// Set stores the latest successful value in both tiers.
func (c *FallbackCache) Set(ctx context.Context, key string, value interface{}) {
	c.lru.Set(ctx, key, value)

	if err := c.remote.Set(ctx, BuildCacheKey(CacheKeyFallback, key), value, c.ttl); err != nil {
		// Redis tier is best-effort, the LRU still holds the value.
		c.logger.Debugw("fallback cache redis write failed", "key", key, "error", err)
	}
}
