package reconcile

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/planora-app/planora/internal/shared"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute, slog.Default()), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	tenantID, periodID := uuid.New(), uuid.New()

	_, ok := cache.Get(context.Background(), tenantID, periodID)
	require.False(t, ok)

	dash := Dashboard{
		PeriodID: periodID,
		Period:   "2024-03",
		Summary:  Summary{TotalDemandFte: 110, TotalSupplyFte: 100, TotalGapFte: -10},
	}
	cache.Set(context.Background(), tenantID, periodID, dash)

	got, ok := cache.Get(context.Background(), tenantID, periodID)
	require.True(t, ok)
	require.Equal(t, dash.Summary, got.Summary)
	require.Equal(t, "2024-03", got.Period)
}

func TestRedisCacheInvalidate(t *testing.T) {
	cache, mr := newTestCache(t)
	tenantID, periodID := uuid.New(), uuid.New()

	cache.Set(context.Background(), tenantID, periodID, Dashboard{PeriodID: periodID})
	require.True(t, mr.Exists(shared.DashboardCacheKey(tenantID, periodID)))

	cache.Invalidate(context.Background(), tenantID, periodID)
	require.False(t, mr.Exists(shared.DashboardCacheKey(tenantID, periodID)))

	_, ok := cache.Get(context.Background(), tenantID, periodID)
	require.False(t, ok)
}

func TestRedisCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	tenantID, periodID := uuid.New(), uuid.New()

	cache.Set(context.Background(), tenantID, periodID, Dashboard{PeriodID: periodID})
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(context.Background(), tenantID, periodID)
	require.False(t, ok)
}
