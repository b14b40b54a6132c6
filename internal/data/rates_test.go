package data

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGuard/internal/model"
)

func setupRateCounter(t *testing.T) (*RateCounter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	rc := NewRateCounter(rdb, log.NewStdLogger(io.Discard))
	return rc, mr
}

func TestRateCounter_Incr(t *testing.T) {
	rc, mr := setupRateCounter(t)
	defer mr.Close()

	ctx := context.Background()

	// First increment returns 1 and sets expiration
	count, err := rc.Incr(ctx, "errors")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Subsequent increments keep counting in the same bucket
	count, err = rc.Incr(ctx, "errors")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The bucket key carries a TTL
	key := rateBucketKey("errors", time.Now())
	assert.Greater(t, mr.TTL(key), time.Duration(0))
}

func TestRateCounter_IncrSeparateClasses(t *testing.T) {
	rc, mr := setupRateCounter(t)
	defer mr.Close()

	ctx := context.Background()

	_, err := rc.Incr(ctx, "errors")
	require.NoError(t, err)
	_, err = rc.Incr(ctx, "violations")
	require.NoError(t, err)
	count, err := rc.Incr(ctx, "violations")
	require.NoError(t, err)

	assert.Equal(t, int64(2), count)
}

func TestRateCounter_WindowCount(t *testing.T) {
	rc, mr := setupRateCounter(t)
	defer mr.Close()

	ctx := context.Background()

	// Current minute bucket
	for i := 0; i < 3; i++ {
		_, err := rc.Incr(ctx, "errors")
		require.NoError(t, err)
	}

	// Previous minute bucket, written directly
	prevKey := rateBucketKey("errors", time.Now().Add(-time.Minute))
	require.NoError(t, mr.Set(prevKey, "5"))

	// Window covering both buckets
	total, err := rc.WindowCount(ctx, "errors", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)

	// Window covering only the current bucket
	total, err = rc.WindowCount(ctx, "errors", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestRateCounter_WindowCountEmpty(t *testing.T) {
	rc, mr := setupRateCounter(t)
	defer mr.Close()

	total, err := rc.WindowCount(context.Background(), "errors", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestRateCounter_RecordAndListTrips(t *testing.T) {
	rc, mr := setupRateCounter(t)
	defer mr.Close()

	ctx := context.Background()

	first := &model.TripRecord{
		Circuit:             "pricing-api",
		TrippedAt:           time.Now().UTC().Add(-time.Minute).Round(time.Second),
		ConsecutiveFailures: 5,
	}
	second := &model.TripRecord{
		Circuit:             "settlement-db",
		TrippedAt:           time.Now().UTC().Round(time.Second),
		ConsecutiveFailures: 3,
	}

	require.NoError(t, rc.RecordTrip(ctx, first))
	require.NoError(t, rc.RecordTrip(ctx, second))

	trips, err := rc.RecentTrips(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trips, 2)

	// Most recent first
	assert.Equal(t, "settlement-db", trips[0].Circuit)
	assert.Equal(t, 3, trips[0].ConsecutiveFailures)
	assert.Equal(t, "pricing-api", trips[1].Circuit)
	assert.True(t, first.TrippedAt.Equal(trips[1].TrippedAt))
}

func TestRateCounter_TripHistoryBounded(t *testing.T) {
	rc, mr := setupRateCounter(t)
	defer mr.Close()

	ctx := context.Background()

	for i := 0; i < tripHistorySize+20; i++ {
		trip := &model.TripRecord{
			Circuit:   "pricing-api",
			TrippedAt: time.Now().UTC(),
		}
		require.NoError(t, rc.RecordTrip(ctx, trip))
	}

	trips, err := rc.RecentTrips(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, trips, tripHistorySize)
}

func TestRateCounter_RecentTripsSkipsMalformed(t *testing.T) {
	rc, mr := setupRateCounter(t)
	defer mr.Close()

	ctx := context.Background()

	require.NoError(t, rc.RecordTrip(ctx, &model.TripRecord{Circuit: "pricing-api", TrippedAt: time.Now().UTC()}))

	// Inject garbage directly into the list
	key := BuildCacheKey(CacheKeyTrips)
	_, err := mr.Lpush(key, "not json {{{")
	require.NoError(t, err)

	trips, err := rc.RecentTrips(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "pricing-api", trips[0].Circuit)
}

func TestRateCounter_NilRedisDegradation(t *testing.T) {
	rc := NewRateCounter(nil, log.NewStdLogger(io.Discard))
	ctx := context.Background()

	// All operations no-op without Redis
	count, err := rc.Incr(ctx, "errors")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	total, err := rc.WindowCount(ctx, "errors", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), total)

	assert.NoError(t, rc.RecordTrip(ctx, &model.TripRecord{Circuit: "x"}))

	trips, err := rc.RecentTrips(ctx, 10)
	assert.NoError(t, err)
	assert.Nil(t, trips)
}
