package resilience

import (
	"context"
	"errors"
	"sync/atomic"
)

// ExecutorOption configures an Executor built through Registry.Resilient.
type ExecutorOption func(*Executor)

// WithBreaker guards the operation with the named circuit breaker.
func WithBreaker(name string) ExecutorOption {
	return func(e *Executor) {
		e.breakerName = name
	}
}

// WithRetry runs the operation under the named retry policy.
func WithRetry(name string) ExecutorOption {
	return func(e *Executor) {
		e.retryName = name
	}
}

// WithFallback resolves the given strategy when the call cannot succeed.
func WithFallback(fb Fallback) ExecutorOption {
	return func(e *Executor) {
		e.fallback = fb
	}
}

// Executor composes breaker, retry, and fallback around an operation in a
// fixed order:
//
//  1. A configured breaker that refuses admission skips execution entirely;
//     the blocked call never counts as a breaker failure.
//  2. The operation runs under the retry policy when one is configured,
//     otherwise once.
//  3. Success records on the breaker, writes through to the fallback cache
//     when one is attached, and returns the result.
//  4. Failure records on the breaker (unless blocked), then the fallback is
//     the last line of defense; without one the final typed error propagates.
//
// Executors are cheap, immutable, and safe for concurrent use; services build
// one per dependency at startup and reuse it for every call.
type Executor struct {
	registry    *Registry
	breakerName string
	retryName   string
	fallback    Fallback
}

// Do invokes op through the configured resilience chain.
func (e *Executor) Do(ctx context.Context, op Operation) (interface{}, error) {
	var cb *CircuitBreaker
	if e.breakerName != "" {
		var err error
		cb, err = e.registry.Breaker(e.breakerName)
		if err != nil {
			return nil, err
		}
	}

	var attempts int64
	counted := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt64(&attempts, 1)
		return op(ctx)
	}

	blocked := false
	var result interface{}
	var err error

	if cb != nil {
		err = cb.Allow()
		blocked = err != nil
	}

	if !blocked {
		result, err = e.execute(ctx, counted, cb)
		if err == nil {
			if cb != nil {
				cb.RecordSuccess()
			}
			e.storeLastGood(ctx, result)
			return result, nil
		}

		var notRegistered *NotRegisteredError
		if errors.As(err, &notRegistered) {
			// Misconfigured policy name, not a dependency failure: no
			// breaker accounting, no fallback.
			if cb != nil {
				cb.Release()
			}
			return nil, err
		}

		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// The caller gave up, not the dependency: free any half-open
			// slot without an outcome and propagate cancellation.
			if cb != nil {
				cb.Release()
			}
			return nil, err
		}

		if cb != nil {
			cb.RecordFailure()
		}
	}

	if e.fallback == nil {
		return nil, err
	}

	fc := &FallbackContext{
		Err:      err,
		Attempts: int(atomic.LoadInt64(&attempts)),
		Circuit:  e.breakerName,
	}

	value, fbErr := e.fallback.Resolve(ctx, fc)
	if fbErr != nil {
		var noCache *NoCachedValueError
		if errors.As(fbErr, &noCache) {
			// Nothing cached: re-raise the original failure.
			return nil, err
		}
		return nil, fbErr
	}

	if hook := e.registry.fallbackHook; hook != nil {
		hook(e.breakerName, e.fallback.Kind(), fc.Attempts, err)
	}

	return value, nil
}

// execute runs the operation under the retry policy when configured.
func (e *Executor) execute(ctx context.Context, op Operation, cb *CircuitBreaker) (interface{}, error) {
	if e.retryName == "" {
		return op(ctx)
	}

	rt, err := e.registry.Retry(e.retryName)
	if err != nil {
		return nil, err
	}

	return rt.DoWithBreaker(ctx, op, cb)
}

// storeLastGood writes a successful result through to the cache fallback, so
// a later CacheFallback resolution has something to serve.
func (e *Executor) storeLastGood(ctx context.Context, result interface{}) {
	cf, ok := e.fallback.(*cacheFallback)
	if !ok {
		return
	}

	key := cf.cacheKey(ctx, &FallbackContext{Circuit: e.breakerName})
	cf.cache.Set(ctx, key, result)
}
