package metadata

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_NilAndEmpty(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	out := Normalize(map[string]interface{}{})
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestNormalize_KeepsSmallMapsIntact(t *testing.T) {
	in := map[string]interface{}{
		"method":      "GET",
		"status":      200,
		"duration_ms": 12.5,
		"cached":      true,
	}

	out := Normalize(in)
	assert.Equal(t, "GET", out["method"])
	assert.Equal(t, 200, out["status"])
	assert.Equal(t, 12.5, out["duration_ms"])
	assert.Equal(t, true, out["cached"])
	assert.NotContains(t, out, TruncatedKey)
}

func TestNormalize_CapsEntryCount(t *testing.T) {
	in := make(map[string]interface{})
	for i := 0; i < MaxEntries+7; i++ {
		in[fmt.Sprintf("key_%03d", i)] = i
	}

	out := Normalize(in)
	assert.Equal(t, 7, out[TruncatedKey])
	assert.Len(t, out, MaxEntries+1) // MaxEntries kept + the marker

	// Deterministic selection: smallest keys survive.
	assert.Contains(t, out, "key_000")
	assert.NotContains(t, out, fmt.Sprintf("key_%03d", MaxEntries+6))
}

func TestNormalize_TruncatesOversizeValues(t *testing.T) {
	long := strings.Repeat("x", MaxValueLen+100)

	out := Normalize(map[string]interface{}{"detail": long})

	got, ok := out["detail"].(string)
	require.True(t, ok)
	assert.Len(t, got, MaxValueLen+len(TruncatedSuffix))
	assert.True(t, strings.HasSuffix(got, TruncatedSuffix))
}

func TestNormalize_TruncatesOversizeKeys(t *testing.T) {
	longKey := strings.Repeat("k", MaxKeyLen+10)

	out := Normalize(map[string]interface{}{longKey: "v"})

	assert.Contains(t, out, longKey[:MaxKeyLen])
	assert.NotContains(t, out, longKey)
}

func TestNormalize_MasksSensitiveKeys(t *testing.T) {
	in := map[string]interface{}{
		"api_key":       "sk-1234567890abcdef",
		"user_password": "hunter2",
		"signing_key":   12345,
		"username":      "alice",
	}

	out := Normalize(in)
	assert.Equal(t, "sk-1***", out["api_key"])
	assert.Equal(t, "*******", out["user_password"])
	assert.Equal(t, "***", out["signing_key"])
	assert.Equal(t, "alice", out["username"], "non-sensitive values pass through")
}

func TestNormalize_StructuredValues(t *testing.T) {
	small := map[string]string{"a": "b"}
	big := map[string]string{"blob": strings.Repeat("y", MaxValueLen*2)}

	out := Normalize(map[string]interface{}{
		"small": small,
		"big":   big,
	})

	assert.Equal(t, small, out["small"], "small structured values survive as-is")

	got, ok := out["big"].(string)
	require.True(t, ok, "oversize structured values are flattened to a truncated string")
	assert.True(t, strings.HasSuffix(got, TruncatedSuffix))
}
