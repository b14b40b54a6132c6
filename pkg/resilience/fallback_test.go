package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueFallback_ReturnsFixedValue(t *testing.T) {
	fb := ValueFallback(map[string]int{"remaining": 0})

	v, err := fb.Resolve(context.Background(), &FallbackContext{Err: errBoom})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"remaining": 0}, v)
	assert.Equal(t, "value", fb.Kind())
}

func TestFuncFallback_ReceivesFailureContext(t *testing.T) {
	fb := FuncFallback(func(ctx context.Context, fc *FallbackContext) (interface{}, error) {
		assert.Equal(t, errBoom, fc.Err)
		assert.Equal(t, 3, fc.Attempts)
		assert.Equal(t, "market-data", fc.Circuit)
		return "degraded", nil
	})

	v, err := fb.Resolve(context.Background(), &FallbackContext{Err: errBoom, Attempts: 3, Circuit: "market-data"})
	require.NoError(t, err)
	assert.Equal(t, "degraded", v)
}

func TestFuncFallback_MayReRaise(t *testing.T) {
	fb := FuncFallback(func(ctx context.Context, fc *FallbackContext) (interface{}, error) {
		return nil, fc.Err
	})

	_, err := fb.Resolve(context.Background(), &FallbackContext{Err: errBoom})
	assert.ErrorIs(t, err, errBoom)
}

func TestCacheFallback_ServesCachedValue(t *testing.T) {
	cache := NewLRUValueCache(16, time.Minute)
	cache.Set(context.Background(), "quote:AAPL", 187.5)

	fb := CacheFallback(func(ctx context.Context, fc *FallbackContext) string {
		return "quote:AAPL"
	}, cache)

	v, err := fb.Resolve(context.Background(), &FallbackContext{Err: errBoom})
	require.NoError(t, err)
	assert.Equal(t, 187.5, v)
}

func TestCacheFallback_MissReturnsNoCachedValue(t *testing.T) {
	cache := NewLRUValueCache(16, time.Minute)

	fb := CacheFallback(func(ctx context.Context, fc *FallbackContext) string {
		return "quote:MSFT"
	}, cache)

	_, err := fb.Resolve(context.Background(), &FallbackContext{Err: errBoom})

	var noCache *NoCachedValueError
	require.ErrorAs(t, err, &noCache)
	assert.Equal(t, "quote:MSFT", noCache.Key)
}

func TestLRUValueCache_EntriesExpire(t *testing.T) {
	cache := NewLRUValueCache(16, 20*time.Millisecond)
	ctx := context.Background()

	cache.Set(ctx, "k", "v")
	_, ok := cache.Get(ctx, "k")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
}
