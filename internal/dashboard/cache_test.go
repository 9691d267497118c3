package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwell-analytics/insight/internal/analytics"
	"github.com/inkwell-analytics/insight/internal/storage"
)

// fakeRedis implements the command slice the cache uses with a plain
// map, so cache behavior is testable without a Redis server.
type fakeRedis struct {
	entries map[string]string
	ttls    map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		entries: make(map[string]string),
		ttls:    make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := f.entries[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.entries[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	cache := NewCache(fake, time.Minute, zap.NewNop())
	filters := defaultFilters()

	stored := OverviewResponse{
		KPIs:      analytics.KPIs{TotalRevenue: 120, ActiveCustomers: 3},
		LateCount: 2,
	}
	cache.Set(ctx, PageOverview, filters, stored)

	var got OverviewResponse
	require.True(t, cache.Get(ctx, PageOverview, filters, &got))
	assert.Equal(t, stored, got)

	require.Len(t, fake.ttls, 1)
	for _, ttl := range fake.ttls {
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestCacheMiss(t *testing.T) {
	cache := NewCache(newFakeRedis(), time.Minute, zap.NewNop())

	var got OverviewResponse
	assert.False(t, cache.Get(context.Background(), PageOverview, defaultFilters(), &got))
}

func TestCacheCorruptEntryIsAMiss(t *testing.T) {
	fake := newFakeRedis()
	cache := NewCache(fake, time.Minute, zap.NewNop())
	filters := defaultFilters()

	fake.entries[cacheKey(PageOverview, filters)] = `{not json`

	var got OverviewResponse
	assert.False(t, cache.Get(context.Background(), PageOverview, filters, &got))
}

func TestCacheKeyStableAcrossEqualFilters(t *testing.T) {
	a := analytics.Filters{
		DateRange:  analytics.DateRange{Preset: analytics.Range30d},
		Turnaround: "24h",
	}
	b := analytics.Filters{
		DateRange:  analytics.DateRange{Preset: analytics.Range30d},
		Turnaround: "24h",
	}

	assert.Equal(t, cacheKey(PageOverview, a), cacheKey(PageOverview, b))
	assert.NotEqual(t, cacheKey(PageOverview, a), cacheKey(PageRevenue, a))

	b.Turnaround = "48h"
	assert.NotEqual(t, cacheKey(PageOverview, a), cacheKey(PageOverview, b))
}

func TestServiceServesCachedResponse(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryWorkItemStore()
	require.NoError(t, store.Upsert(ctx, seed("a", 1, withRevenue(10))))

	svc := NewService(store, NewCache(newFakeRedis(), time.Minute, zap.NewNop()), zap.NewNop(), nil)
	svc.now = func() time.Time { return fixedNow }

	first, err := svc.Overview(ctx, defaultFilters())
	require.NoError(t, err)
	assert.Equal(t, 10.0, first.KPIs.TotalRevenue)

	// New data within the TTL is not visible; the page comes from cache.
	require.NoError(t, store.Upsert(ctx, seed("b", 1, withRevenue(5))))

	second, err := svc.Overview(ctx, defaultFilters())
	require.NoError(t, err)
	assert.Equal(t, 10.0, second.KPIs.TotalRevenue)
}
