// Package audit provides the risk-scored, tamper-evident audit trail shared
// by every service: an immutable event type, an async non-blocking logger
// with pluggable storage, and an isolated alert dispatch path.
package audit

import (
	"time"

	"TradeGuard/pkg/metadata"
)

// EventType classifies a security or operational occurrence.
type EventType string

const (
	EventAPICall           EventType = "API_CALL"
	EventAuthSuccess       EventType = "AUTH_SUCCESS"
	EventAuthFailure       EventType = "AUTH_FAILURE"
	EventSecurityViolation EventType = "SECURITY_VIOLATION"
	EventCircuitTrip       EventType = "CIRCUIT_TRIP"
	EventFallbackInvoked   EventType = "FALLBACK_INVOKED"
	EventDataAccess        EventType = "DATA_ACCESS"
	EventRateLimitExceeded EventType = "RATE_LIMIT_EXCEEDED"
	EventConfigChange      EventType = "CONFIG_CHANGE"
	EventAlertDispatched   EventType = "ALERT_DISPATCHED"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// Severity grades an event's urgency.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// DefaultSeverity returns the severity assumed when the caller supplies none.
func DefaultSeverity(t EventType) Severity {
	switch t {
	case EventSecurityViolation:
		return SeverityCritical
	case EventAuthFailure, EventCircuitTrip, EventFallbackInvoked, EventRateLimitExceeded:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// BaselineRiskScore returns the risk score assumed when the caller supplies
// none. Explicit caller values always win.
func BaselineRiskScore(t EventType) int {
	switch t {
	case EventSecurityViolation:
		return 90
	case EventAuthFailure:
		return 60
	case EventCircuitTrip:
		return 50
	case EventRateLimitExceeded:
		return 40
	case EventFallbackInvoked, EventConfigChange:
		return 30
	case EventDataAccess:
		return 20
	default:
		return 5
	}
}

// Event is one record in the audit trail. Construct it with the caller-known
// fields; Logger.Log assigns EventID and Timestamp, applies defaults, and
// treats the event as immutable from then on.
type Event struct {
	EventID      string                 `json:"event_id"`
	Timestamp    time.Time              `json:"timestamp"`
	EventType    EventType              `json:"event_type"`
	Severity     Severity               `json:"severity"`
	UserID       string                 `json:"user_id,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	RiskScore    int                    `json:"risk_score"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Signature    string                 `json:"signature,omitempty"`

	// riskScoreSet distinguishes an explicit zero from "not supplied".
	riskScoreSet bool
}

// SetRiskScore records an explicit caller-supplied score, including zero.
// Values clamp to [0,100] at log time.
func (e *Event) SetRiskScore(score int) *Event {
	e.RiskScore = score
	e.riskScoreSet = true
	return e
}

// normalize applies log-time defaulting: severity and baseline risk from the
// event type, risk clamping, and metadata capping. Caller-supplied values are
// kept.
func (e *Event) normalize() {
	if e.Severity == "" {
		e.Severity = DefaultSeverity(e.EventType)
	}

	if e.RiskScore == 0 && !e.riskScoreSet {
		e.RiskScore = BaselineRiskScore(e.EventType)
	}
	if e.RiskScore < 0 {
		e.RiskScore = 0
	}
	if e.RiskScore > 100 {
		e.RiskScore = 100
	}

	if e.Metadata != nil {
		e.Metadata = metadata.Normalize(e.Metadata)
	}
}

// AlertWorthy reports whether the event must be handed to the alert
// dispatcher: CRITICAL severity or a risk score above 80.
func (e *Event) AlertWorthy() bool {
	return e.Severity == SeverityCritical || e.RiskScore > 80
}
