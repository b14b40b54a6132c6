// Package metadata provides normalization for audit event metadata maps.
// Event metadata is caller-supplied and arbitrary, so it is capped, truncated,
// and masked before an event is accepted; oversize metadata is never an error.
package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Normalization limits. A map that exceeds them is trimmed, with marker keys
// recording what was cut.
const (
	// MaxEntries is the maximum number of metadata keys kept per event.
	MaxEntries = 32
	// MaxValueLen is the maximum serialized length of a single value.
	MaxValueLen = 512
	// MaxKeyLen is the maximum length of a metadata key.
	MaxKeyLen = 64
)

// Marker keys written into normalized metadata when content was cut.
const (
	// TruncatedKey is set to the number of entries dropped by the entry cap.
	TruncatedKey = "_truncated_entries"
	// TruncatedSuffix is appended to oversize string values.
	TruncatedSuffix = "...(truncated)"
)

// sensitiveKeywords are key substrings whose values are masked rather than
// stored, matching the logging sanitizer's vocabulary.
var sensitiveKeywords = []string{
	"password", "passwd", "pwd",
	"api_key", "apikey", "api-key",
	"token", "access_token", "refresh_token",
	"secret", "authorization",
	"credential", "private_key", "privatekey",
	"signing_key",
}

// Normalize returns a bounded copy of m safe to persist on an audit event:
//   - at most MaxEntries keys survive (smallest keys first, deterministically);
//     the number of dropped entries is recorded under TruncatedKey
//   - keys longer than MaxKeyLen are truncated
//   - string values longer than MaxValueLen are truncated with TruncatedSuffix
//   - non-string values that don't serialize to JSON are replaced with their
//     fmt representation, truncated the same way
//   - values under sensitive-looking keys are masked
//
// Normalize never fails and never returns nil for a non-nil input.
func Normalize(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kept := keys
	dropped := 0
	if len(keys) > MaxEntries {
		kept = keys[:MaxEntries]
		dropped = len(keys) - MaxEntries
	}

	out := make(map[string]interface{}, len(kept)+1)
	for _, k := range kept {
		out[normalizeKey(k)] = normalizeValue(k, m[k])
	}

	if dropped > 0 {
		out[TruncatedKey] = dropped
	}

	return out
}

// normalizeKey truncates oversize keys.
func normalizeKey(k string) string {
	if len(k) > MaxKeyLen {
		return k[:MaxKeyLen]
	}
	return k
}

// normalizeValue masks sensitive values and bounds everything else.
func normalizeValue(key string, v interface{}) interface{} {
	if isSensitiveKey(key) {
		return maskValue(v)
	}

	switch val := v.(type) {
	case string:
		return truncate(val)
	case nil, bool, int, int32, int64, float32, float64:
		return val
	default:
		// Structured values stay as-is when they serialize small enough;
		// otherwise store a truncated string form.
		data, err := json.Marshal(val)
		if err != nil {
			return truncate(fmt.Sprintf("%v", val))
		}
		if len(data) <= MaxValueLen {
			return val
		}
		return truncate(string(data))
	}
}

// isSensitiveKey reports whether the key looks like it carries a credential.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// maskValue masks a sensitive value, keeping only a short prefix of strings.
func maskValue(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return "***"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "***"
}

// truncate bounds a string value at MaxValueLen.
func truncate(s string) string {
	if len(s) <= MaxValueLen {
		return s
	}
	return s[:MaxValueLen] + TruncatedSuffix
}
