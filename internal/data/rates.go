package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"TradeGuard/internal/model"
)

// tripHistorySize bounds the breaker trip list kept for the status endpoint.
const tripHistorySize = 100

// RateCounter keeps per-minute audit event counters and the recent breaker
// trip history in Redis. Counters are advisory: with no Redis the service
// still runs, rates just read as zero.
type RateCounter struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewRateCounter creates a new rate counter repository.
func NewRateCounter(rdb *redis.Client, logger log.Logger) *RateCounter {
	return &RateCounter{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// Available reports whether a Redis backend is connected.
func (r *RateCounter) Available() bool {
	return r.rdb != nil
}

// Incr bumps the counter for an event class in the current minute bucket.
// Uses Redis INCR with expiration set on first increment.
// Returns the new count for the bucket.
func (r *RateCounter) Incr(ctx context.Context, class string) (int64, error) {
	if r.rdb == nil {
		return 0, nil
	}

	key := rateBucketKey(class, time.Now())

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	// Set expiration on first increment (atomic operation)
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, TTLEventRate).Err(); err != nil {
			r.logger.Warnf("Failed to set rate counter expiration for %s: %v", class, err)
			// Don't return error, counter is still incremented
		}
	}

	return count, nil
}

// WindowCount sums the minute buckets for an event class over the trailing
// window. Missing buckets count as zero.
func (r *RateCounter) WindowCount(ctx context.Context, class string, window time.Duration) (int64, error) {
	if r.rdb == nil {
		return 0, nil
	}

	minutes := int(window.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	now := time.Now()
	keys := make([]string, 0, minutes)
	for i := 0; i < minutes; i++ {
		keys = append(keys, rateBucketKey(class, now.Add(-time.Duration(i)*time.Minute)))
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read rate buckets: %w", err)
	}

	var total int64
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // expired or never written
		}
		var n int64
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
			total += n
		}
	}
	return total, nil
}

// RecordTrip pushes a breaker trip onto the bounded history list.
func (r *RateCounter) RecordTrip(ctx context.Context, trip *model.TripRecord) error {
	if r.rdb == nil {
		return nil
	}

	payload, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("failed to marshal trip record: %w", err)
	}

	key := BuildCacheKey(CacheKeyTrips)
	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, tripHistorySize-1)
	pipe.Expire(ctx, key, TTLTrips)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record breaker trip: %w", err)
	}
	return nil
}

// RecentTrips returns the newest breaker trips, most recent first.
func (r *RateCounter) RecentTrips(ctx context.Context, limit int) ([]*model.TripRecord, error) {
	if r.rdb == nil {
		return nil, nil
	}
	if limit <= 0 || limit > tripHistorySize {
		limit = tripHistorySize
	}

	key := BuildCacheKey(CacheKeyTrips)
	raw, err := r.rdb.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read breaker trips: %w", err)
	}

	trips := make([]*model.TripRecord, 0, len(raw))
	for _, item := range raw {
		var trip model.TripRecord
		if err := json.Unmarshal([]byte(item), &trip); err != nil {
			r.logger.Warnw("skipping malformed trip record", "error", err)
			continue
		}
		trips = append(trips, &trip)
	}
	return trips, nil
}

// rateBucketKey generates a Redis key for a minute bucket.
// Format: audit_rate:{class}:{unix_minute}
// Example: audit_rate:errors:29512345
func rateBucketKey(class string, at time.Time) string {
	return BuildCacheKey(CacheKeyEventRate, class, fmt.Sprintf("%d", at.Unix()/60))
}
