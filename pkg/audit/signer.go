package audit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"TradeGuard/pkg/crypto"
)

// Signer makes the trail tamper-evident: each persisted event carries an
// HMAC-SHA256 signature over its canonical fields. An empty key disables
// signing (dev mode); a disabled signer signs nothing and verifies everything.
type Signer struct {
	hmac *crypto.HMACSigner
}

// NewSigner creates a signer from the configured key. An empty key returns a
// disabled signer rather than an error.
func NewSigner(key string) (*Signer, error) {
	if key == "" {
		return &Signer{}, nil
	}

	h, err := crypto.NewHMACSigner([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("audit signer: %w", err)
	}
	return &Signer{hmac: h}, nil
}

// Enabled reports whether events are actually signed.
func (s *Signer) Enabled() bool {
	return s.hmac != nil
}

// Sign returns the signature for the event's canonical payload, or "" when
// signing is disabled.
func (s *Signer) Sign(e *Event) string {
	if s.hmac == nil {
		return ""
	}
	return s.hmac.Sign(canonicalPayload(e))
}

// Verify recomputes the event's signature and compares it to the stored one.
// Disabled signers report every event as intact.
func (s *Signer) Verify(e *Event) (bool, error) {
	if s.hmac == nil {
		return true, nil
	}
	if e.Signature == "" {
		return false, nil
	}
	return s.hmac.Verify(canonicalPayload(e), e.Signature)
}

// canonicalPayload serializes the signed fields in a fixed order. Metadata is
// JSON-encoded, which sorts map keys, so the payload is deterministic.
func canonicalPayload(e *Event) []byte {
	var meta string
	if len(e.Metadata) > 0 {
		if data, err := json.Marshal(e.Metadata); err == nil {
			meta = string(data)
		}
	}

	fields := []string{
		e.EventID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.EventType),
		string(e.Severity),
		e.UserID,
		e.Action,
		e.ResourceType,
		e.ResourceID,
		meta,
		strconv.Itoa(e.RiskScore),
		e.IPAddress,
	}

	return []byte(strings.Join(fields, "\n"))
}
