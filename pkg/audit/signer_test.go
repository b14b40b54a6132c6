package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func signedEvent(t *testing.T, s *Signer) *Event {
	t.Helper()
	e := &Event{
		EventID:   "evt-1",
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		EventType: EventDataAccess,
		Severity:  SeverityInfo,
		UserID:    "u-42",
		Action:    "read_position",
		RiskScore: 20,
		Metadata:  map[string]interface{}{"table": "positions", "rows": 3},
	}
	e.Signature = s.Sign(e)
	return e
}

func TestSignerRoundTrip(t *testing.T) {
	s, err := NewSigner(testSigningKey)
	require.NoError(t, err)
	require.True(t, s.Enabled())

	e := signedEvent(t, s)
	require.NotEmpty(t, e.Signature)

	ok, err := s.Verify(e)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignerDetectsTampering(t *testing.T) {
	s, err := NewSigner(testSigningKey)
	require.NoError(t, err)

	e := signedEvent(t, s)
	e.UserID = "u-99"

	ok, err := s.Verify(e)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignerDetectsMetadataTampering(t *testing.T) {
	s, err := NewSigner(testSigningKey)
	require.NoError(t, err)

	e := signedEvent(t, s)
	e.Metadata["rows"] = 4000

	ok, err := s.Verify(e)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignerMissingSignature(t *testing.T) {
	s, err := NewSigner(testSigningKey)
	require.NoError(t, err)

	e := signedEvent(t, s)
	e.Signature = ""

	ok, err := s.Verify(e)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignerDisabledWithEmptyKey(t *testing.T) {
	s, err := NewSigner("")
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	e := &Event{EventID: "evt-1", EventType: EventAPICall}
	assert.Empty(t, s.Sign(e))

	ok, err := s.Verify(e)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignerRejectsShortKey(t *testing.T) {
	_, err := NewSigner("too-short")
	assert.Error(t, err)
}
