package audit

import (
	"context"
	"sync"
	"time"
)

// Filter selects events on the query surface. Zero fields match everything.
type Filter struct {
	EventTypes []EventType
	UserID     string
	Severity   Severity
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Matches reports whether e satisfies the filter (ignoring Limit).
func (f Filter) Matches(e *Event) bool {
	if len(f.EventTypes) > 0 {
		found := false
		for _, t := range f.EventTypes {
			if e.EventType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Stats aggregates event counts over a window for rate dashboards.
type Stats struct {
	Window     time.Duration `json:"window"`
	Total      int64         `json:"total"`
	Errors     int64         `json:"errors"`     // AUTH_FAILURE + CIRCUIT_TRIP + FALLBACK_INVOKED
	Violations int64         `json:"violations"` // SECURITY_VIOLATION
	Critical   int64         `json:"critical"`
}

// Store is the pluggable persistence backend behind the Logger: an in-memory
// ring (tests, degraded mode), the relational store, or a streaming sink
// feeding a SIEM. Append must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, e *Event) error
	Query(ctx context.Context, f Filter) ([]*Event, error)
	Stats(ctx context.Context, window time.Duration) (*Stats, error)
}

// RingStore is a bounded in-memory Store. It backs tests and serves as the
// logger's store of last resort when the primary store fails: oldest events
// are overwritten first, and nothing is ever blocked on.
type RingStore struct {
	mu     sync.RWMutex
	events []*Event
	next   int
	full   bool
}

// NewRingStore creates a ring holding up to size events.
func NewRingStore(size int) *RingStore {
	if size <= 0 {
		size = 1024
	}
	return &RingStore{events: make([]*Event, size)}
}

// Append stores the event, overwriting the oldest entry once full.
func (s *RingStore) Append(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[s.next] = e
	s.next++
	if s.next == len(s.events) {
		s.next = 0
		s.full = true
	}
	return nil
}

// Query returns matching events, newest first, up to f.Limit.
func (s *RingStore) Query(_ context.Context, f Filter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.snapshotLocked() {
		if !f.Matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Stats counts events inside the window.
func (s *RingStore) Stats(_ context.Context, window time.Duration) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-window)
	stats := &Stats{Window: window}

	for _, e := range s.snapshotLocked() {
		if e.Timestamp.Before(cutoff) {
			break // newest-first order: everything further back is older
		}
		stats.Total++
		switch e.EventType {
		case EventAuthFailure, EventCircuitTrip, EventFallbackInvoked:
			stats.Errors++
		case EventSecurityViolation:
			stats.Violations++
		}
		if e.Severity == SeverityCritical {
			stats.Critical++
		}
	}
	return stats, nil
}

// Len returns the number of stored events.
func (s *RingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.full {
		return len(s.events)
	}
	return s.next
}

// snapshotLocked returns stored events newest first. Caller holds s.mu.
func (s *RingStore) snapshotLocked() []*Event {
	var n int
	if s.full {
		n = len(s.events)
	} else {
		n = s.next
	}

	out := make([]*Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := s.next - i
		if idx < 0 {
			idx += len(s.events)
		}
		out = append(out, s.events[idx])
	}
	return out
}
