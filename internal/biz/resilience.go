package biz

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"TradeGuard/internal/conf"
	"TradeGuard/internal/model"
	"TradeGuard/pkg/audit"
	"TradeGuard/pkg/resilience"
)

// ResilienceUsecase owns the process-wide breaker/retry registry. Breaker
// trips and served fallbacks turn into audit events through the registry
// hooks, and the status endpoint reads its snapshot.
type ResilienceUsecase struct {
	registry *resilience.Registry
	auditUC  *AuditUsecase
	rates    RateRepo
	cache    resilience.ValueCache
	logger   *log.Helper
}

// NewResilienceUsecase builds the registry from configuration. Every
// configured policy is registered at startup; invalid configs fail the boot.
func NewResilienceUsecase(
	c *conf.Resilience,
	auditUC *AuditUsecase,
	rates RateRepo,
	cache resilience.ValueCache,
	l log.Logger,
) (*ResilienceUsecase, error) {
	uc := &ResilienceUsecase{
		auditUC: auditUC,
		rates:   rates,
		cache:   cache,
		logger:  log.NewHelper(l),
	}

	uc.registry = resilience.NewRegistry(l,
		resilience.WithTripHook(uc.onTrip),
		resilience.WithFallbackHook(uc.onFallback),
	)

	if c != nil {
		for name, p := range c.Breakers {
			_, err := uc.registry.RegisterBreaker(name, resilience.BreakerConfig{
				FailureThreshold: p.FailureThreshold,
				RecoveryTimeout:  p.RecoveryTimeout,
				HalfOpenMaxCalls: p.HalfOpenMaxCalls,
			})
			if err != nil {
				return nil, fmt.Errorf("register breaker %q: %w", name, err)
			}
		}
		for name, p := range c.Retries {
			cfg := resilience.DefaultRetryConfig()
			if p.MaxAttempts > 0 {
				cfg.MaxAttempts = p.MaxAttempts
			}
			if p.InitialDelay > 0 {
				cfg.InitialDelay = p.InitialDelay
			}
			if p.MaxDelay > 0 {
				cfg.MaxDelay = p.MaxDelay
			}
			if p.Multiplier > 0 {
				cfg.BackoffMultiplier = p.Multiplier
			}
			cfg.Jitter = !p.DisableJitter
			if err := uc.registry.RegisterRetry(name, cfg); err != nil {
				return nil, fmt.Errorf("register retry policy %q: %w", name, err)
			}
		}
	}

	return uc, nil
}

// onTrip records the trip for the status endpoint and emits a CIRCUIT_TRIP
// audit event. Runs outside the breaker's lock.
func (uc *ResilienceUsecase) onTrip(circuit string, from, to resilience.State, consecutiveFailures int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	trip := &model.TripRecord{
		Circuit:             circuit,
		TrippedAt:           time.Now().UTC(),
		ConsecutiveFailures: consecutiveFailures,
	}
	if err := uc.rates.RecordTrip(ctx, trip); err != nil {
		uc.logger.Warnw("failed to record breaker trip", "circuit", circuit, "error", err)
	}

	uc.auditUC.Record(ctx, &audit.Event{
		EventType:    audit.EventCircuitTrip,
		Action:       "circuit_opened",
		ResourceType: "circuit_breaker",
		ResourceID:   circuit,
		Metadata: map[string]interface{}{
			"from_state":           from.String(),
			"to_state":             to.String(),
			"consecutive_failures": consecutiveFailures,
		},
	})
}

// onFallback emits a FALLBACK_INVOKED audit event for every served fallback.
func (uc *ResilienceUsecase) onFallback(circuit, kind string, attempts int, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	meta := map[string]interface{}{
		"fallback_kind": kind,
		"attempts":      attempts,
	}
	if cause != nil {
		meta["cause"] = cause.Error()
	}

	uc.auditUC.Record(ctx, &audit.Event{
		EventType:    audit.EventFallbackInvoked,
		Action:       "fallback_served",
		ResourceType: "circuit_breaker",
		ResourceID:   circuit,
		Metadata:     meta,
	})
}

// Registry exposes the underlying registry for callers composing their own
// executors.
func (uc *ResilienceUsecase) Registry() *resilience.Registry {
	return uc.registry
}

// GuardedCall runs op behind the named breaker and retry policy. A non-empty
// cacheKey attaches a last-known-good cache fallback: successes write through,
// failures serve the cached value.
func (uc *ResilienceUsecase) GuardedCall(ctx context.Context, circuit, retryPolicy, cacheKey string, op resilience.Operation) (interface{}, error) {
	opts := make([]resilience.ExecutorOption, 0, 3)
	if circuit != "" {
		opts = append(opts, resilience.WithBreaker(circuit))
	}
	if retryPolicy != "" {
		opts = append(opts, resilience.WithRetry(retryPolicy))
	}
	if cacheKey != "" {
		keyFn := func(context.Context, *resilience.FallbackContext) string { return cacheKey }
		opts = append(opts, resilience.WithFallback(resilience.CacheFallback(keyFn, uc.cache)))
	}
	return uc.registry.Resilient(opts...).Do(ctx, op)
}

// Status snapshots every registered breaker plus the recent trip history.
func (uc *ResilienceUsecase) Status(ctx context.Context) (*model.ResilienceStatus, error) {
	snapshot := uc.registry.Snapshot()

	breakers := make([]model.BreakerStatus, 0, len(snapshot))
	for name, counts := range snapshot {
		bs := model.BreakerStatus{
			Name:                name,
			State:               counts.State.String(),
			ConsecutiveFailures: counts.ConsecutiveFailures,
			TotalTrips:          counts.TotalTrips,
		}
		if !counts.OpenedAt.IsZero() {
			openedAt := counts.OpenedAt
			bs.OpenedAt = &openedAt
		}
		breakers = append(breakers, bs)
	}
	sort.Slice(breakers, func(i, j int) bool { return breakers[i].Name < breakers[j].Name })

	trips, err := uc.rates.RecentTrips(ctx, 20)
	if err != nil {
		// Trip history is decoration on the status page, not worth a 500
		uc.logger.Warnw("failed to load recent trips", "error", err)
	}
	recent := make([]model.TripRecord, 0, len(trips))
	for _, t := range trips {
		recent = append(recent, *t)
	}

	return &model.ResilienceStatus{
		GeneratedAt: time.Now().UTC(),
		Breakers:    breakers,
		RecentTrips: recent,
	}, nil
}
