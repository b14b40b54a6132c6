package resilience

import (
	"fmt"
	"sync"
	"time"

	"TradeGuard/pkg/metrics"
)

// State represents the current circuit breaker state.
type State int32

const (
	// StateClosed indicates normal operation - calls flow through.
	StateClosed State = iota
	// StateOpen indicates the circuit is tripped - calls are blocked.
	StateOpen
	// StateHalfOpen indicates the circuit is probing - limited trial calls allowed.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Must be >= 1.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before the next
	// incoming call is admitted as a half-open trial. Must be > 0.
	RecoveryTimeout time.Duration

	// HalfOpenMaxCalls is the number of trial calls admitted concurrently
	// while half-open. Defaults to 1 when zero.
	HalfOpenMaxCalls int
}

// Validate checks the configuration and applies the HalfOpenMaxCalls default.
func (c *BreakerConfig) Validate() error {
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be >= 1, got %d", c.FailureThreshold)
	}
	if c.RecoveryTimeout <= 0 {
		return fmt.Errorf("recovery_timeout must be > 0, got %v", c.RecoveryTimeout)
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = 1
	}
	if c.HalfOpenMaxCalls < 1 {
		return fmt.Errorf("half_open_max_calls must be >= 1, got %d", c.HalfOpenMaxCalls)
	}
	return nil
}

// TripHook is invoked after a breaker transitions into the open state.
// It runs outside the breaker's lock, so implementations may log or emit
// audit events freely.
type TripHook func(circuit string, from, to State, consecutiveFailures int)

// Counts is a point-in-time snapshot of a breaker's bookkeeping, consumed by
// the status endpoint.
type Counts struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitzero"`
	HalfOpenInFlight    int       `json:"half_open_in_flight"`
	TotalSuccesses      int64     `json:"total_successes"`
	TotalFailures       int64     `json:"total_failures"`
	TotalRejections     int64     `json:"total_rejections"`
	TotalTrips          int64     `json:"total_trips"`
}

// CircuitBreaker is a per-named-dependency state machine guarding outbound
// calls. All state lives in one process; two instances of the same service
// may legitimately disagree about the same dependency.
//
// Usage: call Allow before the operation; on nil, the operation MUST be
// followed by exactly one of RecordSuccess, RecordFailure, or Release
// (for abandoned calls, e.g. context cancellation), otherwise the half-open
// trial budget leaks.
type CircuitBreaker struct {
	name   string
	config BreakerConfig
	trip   TripHook
	now    func() time.Time // injectable clock for tests

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
	pendingTrip         *tripEvent

	totalSuccesses  int64
	totalFailures   int64
	totalRejections int64
	totalTrips      int64
}

// NewCircuitBreaker creates a breaker with a validated config. The trip hook
// may be nil.
func NewCircuitBreaker(name string, cfg BreakerConfig, trip TripHook) (*CircuitBreaker, error) {
	if name == "" {
		return nil, fmt.Errorf("circuit breaker name is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config for circuit breaker %q: %w", name, err)
	}

	return &CircuitBreaker{
		name:   name,
		config: cfg,
		trip:   trip,
		now:    time.Now,
		state:  StateClosed,
	}, nil
}

// Name returns the breaker's registry name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state. An open breaker whose recovery timeout has
// elapsed still reports open: the half-open transition happens lazily on the
// next Allow, not on a timer.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Counts{
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		OpenedAt:            cb.openedAt,
		HalfOpenInFlight:    cb.halfOpenInFlight,
		TotalSuccesses:      cb.totalSuccesses,
		TotalFailures:       cb.totalFailures,
		TotalRejections:     cb.totalRejections,
		TotalTrips:          cb.totalTrips,
	}
}

// Allow reports whether a call may proceed. It returns nil when admitted and
// *CircuitOpenError when blocked. Admission while half-open consumes one slot
// of the trial budget, which must be released through RecordSuccess,
// RecordFailure, or Release.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		return nil

	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.config.RecoveryTimeout {
			// Lazy transition: this call becomes the first trial.
			cb.transitionLocked(StateHalfOpen)
			cb.halfOpenInFlight = 1
			cb.mu.Unlock()
			return nil
		}
		cb.totalRejections++
		cb.mu.Unlock()
		metrics.CircuitBreakerRejections.WithLabelValues(cb.name).Inc()
		return &CircuitOpenError{Circuit: cb.name}

	case StateHalfOpen:
		if cb.halfOpenInFlight < cb.config.HalfOpenMaxCalls {
			cb.halfOpenInFlight++
			cb.mu.Unlock()
			return nil
		}
		// Trial budget exhausted: rejected as if open.
		cb.totalRejections++
		cb.mu.Unlock()
		metrics.CircuitBreakerRejections.WithLabelValues(cb.name).Inc()
		return &CircuitOpenError{Circuit: cb.name}

	default:
		cb.mu.Unlock()
		return &CircuitOpenError{Circuit: cb.name}
	}
}

// RecordSuccess records a successful call. The first half-open trial success
// closes the circuit and resets all counters.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	cb.totalSuccesses++
	cb.releaseTrialLocked()

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures = 0
	case StateHalfOpen:
		cb.transitionLocked(StateClosed)
	}
	// A late success arriving while open changes nothing.

	hook := cb.pendingTrip
	cb.pendingTrip = nil
	cb.mu.Unlock()

	cb.fire(hook)
}

// RecordFailure records a failed call. While closed, the failure counts
// toward the threshold; while half-open, a single failure re-opens the
// circuit and restarts the recovery timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	cb.totalFailures++
	cb.releaseTrialLocked()

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		cb.transitionLocked(StateOpen)
	}
	// Failures reported while already open do not restart the timer.

	hook := cb.pendingTrip
	cb.pendingTrip = nil
	cb.mu.Unlock()

	cb.fire(hook)
}

// Release returns an admitted half-open slot without recording an outcome.
// Used when a call is abandoned before completing, e.g. on context
// cancellation, so the trial budget is not leaked.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	cb.releaseTrialLocked()
	cb.mu.Unlock()
}

// releaseTrialLocked frees one half-open slot. State transitions reset the
// counter to zero, so a guard keeps it from going negative when a late
// result lands after a transition.
func (cb *CircuitBreaker) releaseTrialLocked() {
	if cb.state == StateHalfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}
}

// pendingTrip carries transition details from transitionLocked out of the
// critical section so the hook never runs under the lock.
type tripEvent struct {
	from, to State
	failures int
}

// transitionLocked moves the breaker to a new state. Caller holds cb.mu.
func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}

	failures := cb.consecutiveFailures

	cb.state = to
	cb.halfOpenInFlight = 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.totalTrips++
		cb.pendingTrip = &tripEvent{from: from, to: to, failures: failures}
	case StateClosed:
		cb.consecutiveFailures = 0
		cb.openedAt = time.Time{}
	}

	metrics.CircuitBreakerStateChanges.WithLabelValues(cb.name, to.String()).Inc()
}

func (cb *CircuitBreaker) fire(ev *tripEvent) {
	if ev == nil || cb.trip == nil {
		return
	}
	cb.trip(cb.name, ev.from, ev.to, ev.failures)
}
