package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, DefaultSeverity(EventSecurityViolation))
	assert.Equal(t, SeverityWarning, DefaultSeverity(EventAuthFailure))
	assert.Equal(t, SeverityWarning, DefaultSeverity(EventCircuitTrip))
	assert.Equal(t, SeverityWarning, DefaultSeverity(EventFallbackInvoked))
	assert.Equal(t, SeverityWarning, DefaultSeverity(EventRateLimitExceeded))
	assert.Equal(t, SeverityInfo, DefaultSeverity(EventAPICall))
	assert.Equal(t, SeverityInfo, DefaultSeverity(EventAuthSuccess))
	assert.Equal(t, SeverityInfo, DefaultSeverity(EventDataAccess))
}

func TestBaselineRiskScore(t *testing.T) {
	assert.Equal(t, 90, BaselineRiskScore(EventSecurityViolation))
	assert.Equal(t, 60, BaselineRiskScore(EventAuthFailure))
	assert.Equal(t, 50, BaselineRiskScore(EventCircuitTrip))
	assert.Equal(t, 40, BaselineRiskScore(EventRateLimitExceeded))
	assert.Equal(t, 30, BaselineRiskScore(EventFallbackInvoked))
	assert.Equal(t, 30, BaselineRiskScore(EventConfigChange))
	assert.Equal(t, 20, BaselineRiskScore(EventDataAccess))
	assert.Equal(t, 5, BaselineRiskScore(EventAPICall))
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	e := &Event{EventType: EventAuthFailure, Action: "login"}
	e.normalize()

	assert.Equal(t, SeverityWarning, e.Severity)
	assert.Equal(t, 60, e.RiskScore)
}

func TestNormalizeKeepsCallerValues(t *testing.T) {
	e := &Event{
		EventType: EventAuthFailure,
		Severity:  SeverityCritical,
	}
	e.SetRiskScore(95)
	e.normalize()

	assert.Equal(t, SeverityCritical, e.Severity)
	assert.Equal(t, 95, e.RiskScore)
}

func TestNormalizeExplicitZeroRiskScore(t *testing.T) {
	// An explicit zero must survive defaulting.
	e := &Event{EventType: EventSecurityViolation}
	e.SetRiskScore(0)
	e.normalize()

	assert.Equal(t, 0, e.RiskScore)
}

func TestNormalizeClampsRiskScore(t *testing.T) {
	high := &Event{EventType: EventAPICall}
	high.SetRiskScore(150)
	high.normalize()
	assert.Equal(t, 100, high.RiskScore)

	low := &Event{EventType: EventAPICall}
	low.SetRiskScore(-10)
	low.normalize()
	assert.Equal(t, 0, low.RiskScore)
}

func TestNormalizeCapsMetadata(t *testing.T) {
	e := &Event{
		EventType: EventAPICall,
		Metadata: map[string]interface{}{
			"password": "super-secret-value",
			"note":     strings.Repeat("x", 2000),
		},
	}
	e.normalize()

	assert.NotContains(t, e.Metadata["password"], "super-secret-value")
	note, ok := e.Metadata["note"].(string)
	assert.True(t, ok)
	assert.LessOrEqual(t, len(note), 512+len("...(truncated)"))
}

func TestAlertWorthy(t *testing.T) {
	cases := []struct {
		name     string
		severity Severity
		risk     int
		want     bool
	}{
		{"critical low risk", SeverityCritical, 10, true},
		{"warning high risk", SeverityWarning, 81, true},
		{"info at threshold", SeverityInfo, 80, false},
		{"info low risk", SeverityInfo, 5, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &Event{Severity: tc.severity, RiskScore: tc.risk}
			assert.Equal(t, tc.want, e.AlertWorthy())
		})
	}
}
