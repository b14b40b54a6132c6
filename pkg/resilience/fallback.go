package resilience

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"TradeGuard/pkg/metrics"
)

// FallbackContext carries the failure details a fallback resolves against.
type FallbackContext struct {
	// Err is the final error from the primary call path.
	Err error
	// Attempts is how many times the operation was tried (0 when the breaker
	// blocked the call outright).
	Attempts int
	// Circuit is the breaker name, empty when none was configured.
	Circuit string
}

// Fallback is the closed set of recovery strategies invoked when a call
// cannot succeed: ValueFallback, FuncFallback, and CacheFallback. Resolve
// never panics; it returns a substitute value or a typed error.
type Fallback interface {
	Resolve(ctx context.Context, fc *FallbackContext) (interface{}, error)
	// Kind labels the strategy for metrics and audit metadata.
	Kind() string
}

// valueFallback always returns a fixed value.
type valueFallback struct {
	value interface{}
}

// ValueFallback returns a strategy that always resolves to v.
func ValueFallback(v interface{}) Fallback {
	return &valueFallback{value: v}
}

func (f *valueFallback) Resolve(_ context.Context, _ *FallbackContext) (interface{}, error) {
	metrics.FallbacksInvoked.WithLabelValues(f.Kind()).Inc()
	return f.value, nil
}

func (f *valueFallback) Kind() string { return "value" }

// funcFallback delegates to a caller-provided function.
type funcFallback struct {
	fn func(ctx context.Context, fc *FallbackContext) (interface{}, error)
}

// FuncFallback returns a strategy that invokes fn with the failure context.
// The function may deliberately re-raise by returning fc.Err.
func FuncFallback(fn func(ctx context.Context, fc *FallbackContext) (interface{}, error)) Fallback {
	return &funcFallback{fn: fn}
}

func (f *funcFallback) Resolve(ctx context.Context, fc *FallbackContext) (interface{}, error) {
	metrics.FallbacksInvoked.WithLabelValues(f.Kind()).Inc()
	return f.fn(ctx, fc)
}

func (f *funcFallback) Kind() string { return "func" }

// ValueCache stores last known-good results for cache fallbacks. The executor
// writes through on every success; CacheFallback reads on failure.
// Implementations must be safe for concurrent use and must degrade silently
// (a broken cache means a miss, never an outage).
type ValueCache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{})
}

// KeyFunc derives the cache key for a call, e.g. from request parameters
// stashed in the context.
type KeyFunc func(ctx context.Context, fc *FallbackContext) string

// cacheFallback serves the last known-good value by key.
type cacheFallback struct {
	keyFn KeyFunc
	cache ValueCache
}

// CacheFallback returns a strategy that looks up the last known-good value
// under keyFn's key. When nothing is cached it returns *NoCachedValueError;
// the caller then re-raises the original error.
func CacheFallback(keyFn KeyFunc, cache ValueCache) Fallback {
	return &cacheFallback{keyFn: keyFn, cache: cache}
}

func (f *cacheFallback) Resolve(ctx context.Context, fc *FallbackContext) (interface{}, error) {
	metrics.FallbacksInvoked.WithLabelValues(f.Kind()).Inc()

	key := f.keyFn(ctx, fc)
	if v, ok := f.cache.Get(ctx, key); ok {
		return v, nil
	}
	return nil, &NoCachedValueError{Key: key}
}

func (f *cacheFallback) Kind() string { return "cache" }

// cacheKey exposes the key function to the executor for write-through.
func (f *cacheFallback) cacheKey(ctx context.Context, fc *FallbackContext) string {
	return f.keyFn(ctx, fc)
}

// LRUValueCache is the in-process ValueCache: an expirable LRU sized for one
// service's hot dependencies. Entries age out after the configured TTL.
type LRUValueCache struct {
	lru *expirable.LRU[string, interface{}]
}

// NewLRUValueCache creates an in-process cache holding up to size entries for
// at most ttl each.
func NewLRUValueCache(size int, ttl time.Duration) *LRUValueCache {
	if size <= 0 {
		size = 128
	}
	return &LRUValueCache{
		lru: expirable.NewLRU[string, interface{}](size, nil, ttl),
	}
}

// Get returns the cached value for key, if any.
func (c *LRUValueCache) Get(_ context.Context, key string) (interface{}, bool) {
	return c.lru.Get(key)
}

// Set stores value under key.
func (c *LRUValueCache) Set(_ context.Context, key string, value interface{}) {
	c.lru.Add(key, value)
}
