package authz

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-fsm/meridian/internal/permission"
)

// RedisCache shares resolved permission sets across instances. Every failure
// path degrades to a cache miss so a redis outage slows authorization down
// instead of breaking it.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache constructs a redis backed cache.
func NewRedisCache(client *redis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Get returns the cached actions when the key exists.
func (c *RedisCache) Get(ctx context.Context, key string) ([]permission.Action, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("permission cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	var actions []permission.Action
	if err := json.Unmarshal(data, &actions); err != nil {
		if c.logger != nil {
			c.logger.Warn("permission cache payload corrupt", slog.String("key", key))
		}
		return nil, false
	}
	return actions, true
}

// Set stores the actions with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, actions []permission.Action, ttl time.Duration) {
	data, err := json.Marshal(actions)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("permission cache write failed", slog.Any("error", err))
	}
}

// Delete drops one key.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil && err != redis.Nil && c.logger != nil {
		c.logger.Warn("permission cache delete failed", slog.Any("error", err))
	}
}

// Clear drops every cached permission set.
func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil && c.logger != nil {
			c.logger.Warn("permission cache clear failed", slog.Any("error", err))
		}
	}
	if err := iter.Err(); err != nil && c.logger != nil {
		c.logger.Warn("permission cache scan failed", slog.Any("error", err))
	}
}
