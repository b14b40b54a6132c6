package model

import (
	"errors"
	"time"
)

// ErrEventNotFound marks a lookup for an audit event that does not exist.
var ErrEventNotFound = errors.New("audit event not found")

// BreakerStatus is the ops API view of one circuit breaker.
type BreakerStatus struct {
	Name                string     `json:"name"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalTrips          int64      `json:"total_trips"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}

// ResilienceStatus aggregates every registered breaker plus recent trips for
// the status endpoint.
type ResilienceStatus struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Breakers    []BreakerStatus `json:"breakers"`
	RecentTrips []TripRecord    `json:"recent_trips"`
}

// TripRecord is one breaker trip as reported by the trip counter.
type TripRecord struct {
	Circuit             string    `json:"circuit"`
	TrippedAt           time.Time `json:"tripped_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}
