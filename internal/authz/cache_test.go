package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fsm/meridian/internal/permission"
)

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	cache.Set(ctx, cacheKey(1, 2), []permission.Action{permission.TaskView}, 30*time.Second)
	_, ok := cache.Get(ctx, cacheKey(1, 2))
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = cache.Get(ctx, cacheKey(1, 2))
	assert.False(t, ok)
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	cache.Set(ctx, cacheKey(1, 2), []permission.Action{permission.TaskView}, time.Minute)
	cache.Set(ctx, cacheKey(3, 2), []permission.Action{permission.AuditView}, time.Minute)

	cache.Delete(ctx, cacheKey(1, 2))
	_, ok := cache.Get(ctx, cacheKey(1, 2))
	assert.False(t, ok)
	_, ok = cache.Get(ctx, cacheKey(3, 2))
	assert.True(t, ok)

	cache.Clear(ctx)
	_, ok = cache.Get(ctx, cacheKey(3, 2))
	assert.False(t, ok)
}

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(client, nil)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache := newRedisCache(t)
	ctx := context.Background()

	actions := []permission.Action{permission.TaskView, permission.TaskAssign}
	cache.Set(ctx, cacheKey(1, 2), actions, time.Minute)

	got, ok := cache.Get(ctx, cacheKey(1, 2))
	require.True(t, ok)
	assert.Equal(t, actions, got)

	_, ok = cache.Get(ctx, cacheKey(9, 9))
	assert.False(t, ok)
}

func TestRedisCacheClearRemovesOnlyNamespacedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client, nil)
	ctx := context.Background()

	cache.Set(ctx, cacheKey(1, 2), []permission.Action{permission.TaskView}, time.Minute)
	require.NoError(t, client.Set(ctx, "session:abc", "payload", time.Minute).Err())

	cache.Clear(ctx)

	_, ok := cache.Get(ctx, cacheKey(1, 2))
	assert.False(t, ok)
	assert.NoError(t, client.Get(ctx, "session:abc").Err(), "unrelated keys must survive a flush")
}

func TestRedisCacheFailureDegradesToMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCache(client, nil)
	ctx := context.Background()

	cache.Set(ctx, cacheKey(1, 2), []permission.Action{permission.TaskView}, time.Minute)
	mr.Close()

	_, ok := cache.Get(ctx, cacheKey(1, 2))
	assert.False(t, ok)
}
