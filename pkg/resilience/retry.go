package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"TradeGuard/pkg/metrics"
)

// RetryConfig configures a bounded exponential-backoff retry policy.
type RetryConfig struct {
	// MaxAttempts is the total number of tries including the first one.
	// Must be >= 1.
	MaxAttempts int

	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration

	// BackoffMultiplier scales the delay for each further attempt.
	// Defaults to 2 when zero. Must be >= 1.
	BackoffMultiplier float64

	// MaxDelay caps the computed backoff. Zero means no cap.
	MaxDelay time.Duration

	// Jitter adds up to 10% randomness to each delay to avoid thundering-herd
	// retries. Enabled by default via DefaultRetryConfig.
	Jitter bool

	// RetryableErrors decides whether a failure consumes an attempt.
	// Defaults to IsRetryable, which retries everything except permanent
	// errors and open-circuit rejections.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns the policy used when a service registers a retry
// without overriding fields.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          10 * time.Second,
		Jitter:            true,
		RetryableErrors:   IsRetryable,
	}
}

// Validate checks the configuration and applies defaults.
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0, got %v", c.InitialDelay)
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1, got %v", c.BackoffMultiplier)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("max_delay must be >= 0, got %v", c.MaxDelay)
	}
	if c.RetryableErrors == nil {
		c.RetryableErrors = IsRetryable
	}
	return nil
}

// Operation is the unit of work run under a retry policy or executor.
type Operation func(ctx context.Context) (interface{}, error)

// Retrier executes operations under a named RetryConfig. Retriers are
// stateless between calls and safe for concurrent use.
type Retrier struct {
	name   string
	config RetryConfig
}

// NewRetrier creates a retrier with a validated config.
func NewRetrier(name string, cfg RetryConfig) (*Retrier, error) {
	if name == "" {
		return nil, fmt.Errorf("retry policy name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config for retry policy %q: %w", name, err)
	}

	return &Retrier{name: name, config: cfg}, nil
}

// Name returns the policy's registry name.
func (r *Retrier) Name() string {
	return r.name
}

// Config returns a copy of the policy configuration.
func (r *Retrier) Config() RetryConfig {
	return r.config
}

// Do runs op with up to MaxAttempts total tries. Non-retryable errors
// propagate immediately without consuming further attempts; exhausting the
// budget returns *RetryExhaustedError wrapping the last failure. The backoff
// sleep suspends only the calling goroutine and aborts on ctx cancellation.
func (r *Retrier) Do(ctx context.Context, op Operation) (interface{}, error) {
	return r.do(ctx, op, nil)
}

// DoWithBreaker is Do with a fail-fast check: before every attempt after the
// first, the breaker is consulted and an open circuit stops the loop instead
// of burning the half-open trial budget. The breaker's own bookkeeping stays
// with the caller (the executor); only admission is checked here.
func (r *Retrier) DoWithBreaker(ctx context.Context, op Operation, cb *CircuitBreaker) (interface{}, error) {
	return r.do(ctx, op, cb)
}

func (r *Retrier) do(ctx context.Context, op Operation, cb *CircuitBreaker) (interface{}, error) {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RetryAttempts.WithLabelValues(r.name).Inc()

			if cb != nil && cb.State() == StateOpen {
				// The dependency tripped mid-loop; stop retrying.
				return nil, &RetryExhaustedError{
					Policy:   r.name,
					Attempts: attempt - 1,
					Err:      &CircuitOpenError{Circuit: cb.Name()},
				}
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !r.config.RetryableErrors(err) {
			return nil, err
		}

		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.backoff(attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, &RetryExhaustedError{
		Policy:   r.name,
		Attempts: r.config.MaxAttempts,
		Err:      lastErr,
	}
}

// backoff computes the sleep before the next attempt:
// min(InitialDelay * BackoffMultiplier^(attempt-1), MaxDelay), plus up to
// 10% jitter when enabled.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))

	if r.config.MaxDelay > 0 && d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}

	if r.config.Jitter {
		d += rand.Float64() * 0.1 * d // #nosec G404 -- jitter needs no crypto randomness
	}

	return time.Duration(d)
}
