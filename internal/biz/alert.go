package biz

import (
	"context"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"TradeGuard/pkg/audit"
	"TradeGuard/pkg/resilience"
)

// alertBreakerConfig guards the alert channel: a dead webhook trips after a
// few consecutive failures instead of burning the alert worker on timeouts.
var alertBreakerConfig = resilience.BreakerConfig{
	FailureThreshold: 5,
	RecoveryTimeout:  30 * time.Second,
	HalfOpenMaxCalls: 1,
}

// AlertDispatcher wraps the delivery notifier with a circuit breaker and
// emits an ALERT_DISPATCHED audit event for each successful delivery. It runs
// on the audit logger's isolated alert queue, so a tripped breaker costs
// nothing but the dropped alerts it would have failed to send anyway.
type AlertDispatcher struct {
	next    audit.AlertNotifier
	breaker *resilience.CircuitBreaker
	logger  *log.Helper

	mu     sync.RWMutex
	record func(ctx context.Context, e *audit.Event)
}

// NewAlertDispatcher creates the breaker-guarded dispatcher around the
// configured notifier.
func NewAlertDispatcher(next audit.AlertNotifier, logger log.Logger) (*AlertDispatcher, error) {
	cb, err := resilience.NewCircuitBreaker("alert-webhook", alertBreakerConfig, nil)
	if err != nil {
		return nil, err
	}
	return &AlertDispatcher{
		next:    next,
		breaker: cb,
		logger:  log.NewHelper(logger),
	}, nil
}

// bindRecorder installs the audit recorder after construction. The audit
// usecase owns the dispatcher, so the recorder cannot be a constructor
// argument without a dependency cycle.
func (d *AlertDispatcher) bindRecorder(record func(ctx context.Context, e *audit.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record = record
}

// Name identifies the dispatcher in dispatch logs and metrics.
func (d *AlertDispatcher) Name() string {
	return d.next.Name()
}

// Dispatch delivers the alert through the breaker. Blocked and failed
// dispatches surface as errors so the alert worker counts them.
func (d *AlertDispatcher) Dispatch(ctx context.Context, e *audit.Event) error {
	if err := d.breaker.Allow(); err != nil {
		d.logger.Warnw("alert channel circuit open, alert not delivered",
			"event_id", e.EventID,
			"event_type", e.EventType)
		return err
	}

	if err := d.next.Dispatch(ctx, e); err != nil {
		d.breaker.RecordFailure()
		return err
	}
	d.breaker.RecordSuccess()

	d.mu.RLock()
	record := d.record
	d.mu.RUnlock()
	if record != nil {
		record(ctx, (&audit.Event{
			EventType: audit.EventAlertDispatched,
			Severity:  audit.SeverityInfo,
			Action:    "alert_delivered",
			Metadata: map[string]interface{}{
				"notifier":       d.next.Name(),
				"alert_event_id": e.EventID,
				"alert_type":     string(e.EventType),
			},
		}).SetRiskScore(5))
	}
	return nil
}
