package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHMACSigner_KeyTooShort(t *testing.T) {
	_, err := NewHMACSigner([]byte("short"))
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyTooShort)
}

func TestNewHMACSigner_ValidKey(t *testing.T) {
	signer, err := NewHMACSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.NotNil(t, signer)
}

func TestHMACSigner_SignVerify(t *testing.T) {
	signer, err := NewHMACSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	payload := []byte(`{"event_id":"e1","action":"login"}`)
	sig := signer.Sign(payload)

	// 64 hex chars for SHA-256
	assert.Len(t, sig, 64)

	ok, err := signer.Verify(payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHMACSigner_VerifyTamperedPayload(t *testing.T) {
	signer, err := NewHMACSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)

	payload := []byte(`{"event_id":"e1","risk_score":10}`)
	sig := signer.Sign(payload)

	tampered := []byte(`{"event_id":"e1","risk_score":90}`)
	ok, err := signer.Verify(tampered, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHMACSigner_VerifyMalformedSignature(t *testing.T) {
	signer, err := NewHMACSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)

	tests := []struct {
		name string
		sig  string
	}{
		{name: "not hex", sig: "zzzz"},
		{name: "wrong length", sig: "abcd1234"},
		{name: "empty", sig: ""},
		{name: "too long", sig: strings.Repeat("ab", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := signer.Verify([]byte("payload"), tt.sig)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestHMACSigner_DifferentKeysDisagree(t *testing.T) {
	s1, err := NewHMACSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)
	s2, err := NewHMACSigner([]byte("fedcba9876543210"))
	require.NoError(t, err)

	payload := []byte("same payload")
	sig := s1.Sign(payload)

	ok, err := s2.Verify(payload, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}
