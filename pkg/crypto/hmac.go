// Package crypto provides signing primitives for the tamper-evident audit trail.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrKeyTooShort is returned when the signing key is below the minimum length.
	ErrKeyTooShort = errors.New("signing key must be at least 16 bytes")
	// ErrInvalidSignature is returned when a signature is not valid hex of the expected size.
	ErrInvalidSignature = errors.New("invalid signature: malformed or wrong length")
)

// minKeySize is the minimum accepted HMAC key length in bytes.
const minKeySize = 16

// HMACSigner computes and verifies HMAC-SHA256 signatures over canonical payloads.
// Signatures are hex-encoded. The zero value is not usable; construct with NewHMACSigner.
type HMACSigner struct {
	key []byte
}

// NewHMACSigner creates an HMAC-SHA256 signer.
// The key must be at least 16 bytes; longer keys are used as-is.
func NewHMACSigner(key []byte) (*HMACSigner, error) {
	if len(key) < minKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrKeyTooShort, len(key))
	}

	k := make([]byte, len(key))
	copy(k, key)

	return &HMACSigner{key: k}, nil
}

// Sign returns the hex-encoded HMAC-SHA256 of payload.
func (s *HMACSigner) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload.
// Comparison is constant-time. A malformed signature returns ErrInvalidSignature.
func (s *HMACSigner) Verify(payload []byte, signature string) (bool, error) {
	raw, err := hex.DecodeString(signature)
	if err != nil || len(raw) != sha256.Size {
		return false, ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	expected := mac.Sum(nil)

	return hmac.Equal(raw, expected), nil
}
