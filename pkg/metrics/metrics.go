// Package metrics defines the Prometheus collectors exported by the
// resilience and audit subsystem. Collectors are registered once at package
// init and shared process-wide; the HTTP server mounts MetricsHandler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CircuitBreakerStateChanges counts breaker transitions by circuit and target state.
	CircuitBreakerStateChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_change_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"circuit", "to_state"},
	)

	// CircuitBreakerRejections counts calls blocked by an open breaker or an
	// exhausted half-open budget.
	CircuitBreakerRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Total number of calls rejected by a circuit breaker",
		},
		[]string{"circuit"},
	)

	// RetryAttempts counts retry attempts (not first tries) by policy name.
	RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts after a failed first try",
		},
		[]string{"policy"},
	)

	// FallbacksInvoked counts resolved fallbacks by kind (value, func, cache).
	FallbacksInvoked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbacks_invoked_total",
			Help: "Total number of fallback resolutions",
		},
		[]string{"kind"},
	)

	// AuditRiskScore observes the risk score of every accepted audit event.
	AuditRiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_risk_score",
			Help:    "Distribution of audit event risk scores (0-100)",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// AuditEvents counts accepted audit events by type and severity.
	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events accepted by the logger",
		},
		[]string{"event_type", "severity"},
	)

	// AuditEventsDropped counts events lost by reason (buffer_full, store_error,
	// alert_queue_full, closed).
	AuditEventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Total number of audit events dropped or parked",
		},
		[]string{"reason"},
	)

	// AlertDispatches counts alert dispatch outcomes (ok, error, skipped).
	AlertDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_dispatch_total",
			Help: "Total number of alert dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SIEMExports counts Kafka export outcomes.
	SIEMExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siem_export_total",
			Help: "Total number of audit events exported to the SIEM stream",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		CircuitBreakerStateChanges,
		CircuitBreakerRejections,
		RetryAttempts,
		FallbacksInvoked,
		AuditRiskScore,
		AuditEvents,
		AuditEventsDropped,
		AlertDispatches,
		SIEMExports,
	)
}

// MetricsHandler returns the HTTP handler serving the Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
