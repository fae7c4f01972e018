package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/planora-app/planora/internal/shared"
)

// RedisCache stores dashboards in Redis. Cache failures degrade to a
// recompute, never to an error for the caller.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache constructs a dashboard cache with the given TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached dashboard when present.
func (c *RedisCache) Get(ctx context.Context, tenantID, periodID uuid.UUID) (Dashboard, bool) {
	if c == nil || c.client == nil {
		return Dashboard{}, false
	}
	raw, err := c.client.Get(ctx, shared.DashboardCacheKey(tenantID, periodID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.logger != nil {
			c.logger.Warn("dashboard cache read", slog.Any("error", err))
		}
		return Dashboard{}, false
	}
	var dash Dashboard
	if err := json.Unmarshal(raw, &dash); err != nil {
		if c.logger != nil {
			c.logger.Warn("dashboard cache decode", slog.Any("error", err))
		}
		return Dashboard{}, false
	}
	return dash, true
}

// Set stores a dashboard under the period key.
func (c *RedisCache) Set(ctx context.Context, tenantID, periodID uuid.UUID, dash Dashboard) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(dash)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, shared.DashboardCacheKey(tenantID, periodID), raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("dashboard cache write", slog.Any("error", err))
	}
}

// Invalidate drops the cached dashboard after an allocation write.
func (c *RedisCache) Invalidate(ctx context.Context, tenantID, periodID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, shared.DashboardCacheKey(tenantID, periodID)).Err(); err != nil && c.logger != nil {
		c.logger.Warn("dashboard cache invalidate", slog.Any("error", err))
	}
}
