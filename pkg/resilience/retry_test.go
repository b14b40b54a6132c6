package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestRetrier(t *testing.T, cfg RetryConfig) *Retrier {
	t.Helper()
	rt, err := NewRetrier("test-policy", cfg)
	require.NoError(t, err)
	return rt
}

// Locks in scenario: max_attempts=3 over a function failing three times is
// invoked exactly 3 times and yields RetryExhaustedError, never a 4th call.
func TestRetrier_ExhaustionAfterExactAttemptCount(t *testing.T) {
	rt := newTestRetrier(t, RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	calls := 0
	_, err := rt.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, Transient(errBoom)
	})

	assert.Equal(t, 3, calls)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, "test-policy", exhausted.Policy)
	assert.ErrorIs(t, err, errBoom, "the last failure must stay reachable through Unwrap")
}

func TestRetrier_SucceedsBeforeExhaustion(t *testing.T) {
	rt := newTestRetrier(t, RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	calls := 0
	result, err := rt.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, Transient(errBoom)
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, 3, calls)
}

func TestRetrier_PermanentErrorShortCircuits(t *testing.T) {
	rt := newTestRetrier(t, RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	calls := 0
	_, err := rt.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, Permanent(errBoom)
	})

	assert.Equal(t, 1, calls, "permanent errors must not consume further attempts")

	var perm *PermanentError
	assert.ErrorAs(t, err, &perm)

	var exhausted *RetryExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestRetrier_FirstAttemptRunsImmediately(t *testing.T) {
	rt := newTestRetrier(t, RetryConfig{MaxAttempts: 1, InitialDelay: time.Hour})

	start := time.Now()
	_, err := rt.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, Transient(errBoom)
	})

	assert.Less(t, time.Since(start), time.Second, "a single-attempt policy must never sleep")
	var exhausted *RetryExhaustedError
	assert.ErrorAs(t, err, &exhausted)
}

func TestRetrier_ContextCancellationAbandonsRetries(t *testing.T) {
	rt := newTestRetrier(t, RetryConfig{MaxAttempts: 10, InitialDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := rt.Do(ctx, func(ctx context.Context) (interface{}, error) {
			calls++
			return nil, Transient(errBoom)
		})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond) // let the first attempt fail into backoff
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retrier kept sleeping after cancellation")
	}
}

func TestRetrier_BackoffGrowsAndCaps(t *testing.T) {
	rt := newTestRetrier(t, RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          300 * time.Millisecond,
		Jitter:            false,
	})

	assert.Equal(t, 100*time.Millisecond, rt.backoff(1))
	assert.Equal(t, 200*time.Millisecond, rt.backoff(2))
	assert.Equal(t, 300*time.Millisecond, rt.backoff(3), "delay must cap at max_delay")
	assert.Equal(t, 300*time.Millisecond, rt.backoff(4))
}

func TestRetrier_JitterStaysWithinTenPercent(t *testing.T) {
	rt := newTestRetrier(t, RetryConfig{
		MaxAttempts:  2,
		InitialDelay: 100 * time.Millisecond,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		d := rt.backoff(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestRetrier_FailsFastWhenBreakerOpensMidLoop(t *testing.T) {
	cb, err := NewCircuitBreaker("downstream", BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute}, nil)
	require.NoError(t, err)

	rt := newTestRetrier(t, RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	calls := 0
	_, err = rt.DoWithBreaker(context.Background(), func(ctx context.Context) (interface{}, error) {
		calls++
		// Another in-flight request trips the breaker after our first failure.
		cb.RecordFailure()
		return nil, Transient(errBoom)
	}, cb)

	assert.Equal(t, 1, calls, "no attempt may run while the breaker reports open")

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	var open *CircuitOpenError
	assert.ErrorAs(t, err, &open)
}

func TestRetryConfig_Validation(t *testing.T) {
	_, err := NewRetrier("bad", RetryConfig{MaxAttempts: 0})
	assert.Error(t, err)

	_, err = NewRetrier("bad", RetryConfig{MaxAttempts: 3, BackoffMultiplier: 0.5})
	assert.Error(t, err)

	_, err = NewRetrier("", DefaultRetryConfig())
	assert.Error(t, err)

	rt, err := NewRetrier("defaults", RetryConfig{MaxAttempts: 3})
	require.NoError(t, err)
	assert.Equal(t, float64(2), rt.config.BackoffMultiplier)
	assert.NotNil(t, rt.config.RetryableErrors)
}
