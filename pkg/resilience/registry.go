package resilience

import (
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// FallbackHook observes every resolved fallback, letting the service emit a
// FALLBACK_INVOKED audit event without this package depending on the audit
// layer.
type FallbackHook func(circuit, kind string, attempts int, cause error)

// RegistryOption configures a Registry at construction.
type RegistryOption func(*Registry)

// WithTripHook installs a hook invoked whenever any registered breaker trips
// open.
func WithTripHook(hook TripHook) RegistryOption {
	return func(r *Registry) {
		r.tripHook = hook
	}
}

// WithFallbackHook installs a hook invoked whenever an executor resolves a
// fallback.
func WithFallbackHook(hook FallbackHook) RegistryOption {
	return func(r *Registry) {
		r.fallbackHook = hook
	}
}

// Registry owns all circuit breakers and retry policies for the process
// lifetime. It is constructed explicitly at service startup and injected into
// callers; there is no hidden package-level instance.
//
// Re-registering an existing name with a different config updates the config
// in place WITHOUT resetting live counters. A breaker that is open stays open
// under its new config; this keeps config reloads from masking an unhealthy
// dependency.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	retriers map[string]*Retrier

	tripHook     TripHook
	fallbackHook FallbackHook
	logger       *log.Helper
}

// NewRegistry creates an empty registry.
func NewRegistry(logger log.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		breakers: make(map[string]*CircuitBreaker),
		retriers: make(map[string]*Retrier),
		logger:   log.NewHelper(logger),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterBreaker registers a circuit breaker under name. Registering an
// existing name updates its config in place, keeping live counters and state.
// Invalid configs are rejected.
func (r *Registry) RegisterBreaker(name string, cfg BreakerConfig) (*CircuitBreaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.breakers[name]; ok {
		if err := existing.updateConfig(cfg); err != nil {
			return nil, err
		}
		r.logger.Infow("msg", "circuit breaker config updated",
			"circuit", name,
			"failure_threshold", cfg.FailureThreshold,
			"recovery_timeout", cfg.RecoveryTimeout)
		return existing, nil
	}

	cb, err := NewCircuitBreaker(name, cfg, r.tripHook)
	if err != nil {
		return nil, err
	}

	r.breakers[name] = cb
	r.logger.Infow("msg", "circuit breaker registered",
		"circuit", name,
		"failure_threshold", cfg.FailureThreshold,
		"recovery_timeout", cfg.RecoveryTimeout,
		"half_open_max_calls", cfg.HalfOpenMaxCalls)

	return cb, nil
}

// RegisterRetry registers a retry policy under name. Registering an existing
// name replaces its config; retriers carry no live state, so nothing is lost.
func (r *Registry) RegisterRetry(name string, cfg RetryConfig) error {
	rt, err := NewRetrier(name, cfg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	_, updated := r.retriers[name]
	r.retriers[name] = rt
	r.mu.Unlock()

	if updated {
		r.logger.Infow("msg", "retry policy config updated", "policy", name, "max_attempts", cfg.MaxAttempts)
	} else {
		r.logger.Infow("msg", "retry policy registered", "policy", name, "max_attempts", cfg.MaxAttempts)
	}

	return nil
}

// Breaker looks up a registered circuit breaker.
func (r *Registry) Breaker(name string) (*CircuitBreaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, ok := r.breakers[name]
	if !ok {
		return nil, &NotRegisteredError{Kind: "circuit breaker", Name: name}
	}
	return cb, nil
}

// Retry looks up a registered retry policy.
func (r *Registry) Retry(name string) (*Retrier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.retriers[name]
	if !ok {
		return nil, &NotRegisteredError{Kind: "retry policy", Name: name}
	}
	return rt, nil
}

// BreakerNames returns the registered breaker names.
func (r *Registry) BreakerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// Snapshot returns the current counts of every registered breaker, keyed by
// name. Used by the status endpoint.
func (r *Registry) Snapshot() map[string]Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]Counts, len(r.breakers))
	for name, cb := range r.breakers {
		snap[name] = cb.Counts()
	}
	return snap
}

// Resilient returns a reusable executor composing the named breaker, retry
// policy, and fallback around operations. Names are resolved on every Do, so
// later config updates apply to existing executors.
func (r *Registry) Resilient(opts ...ExecutorOption) *Executor {
	e := &Executor{registry: r}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// updateConfig swaps a breaker's config without touching counters or state.
func (cb *CircuitBreaker) updateConfig(cfg BreakerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	cb.mu.Lock()
	cb.config = cfg
	cb.mu.Unlock()
	return nil
}
