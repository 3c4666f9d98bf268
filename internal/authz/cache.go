package authz

import (
	"context"
	"sync"
	"time"

	"github.com/meridian-fsm/meridian/internal/permission"
)

// cache key namespace, shared by every backend so Clear can match by pattern.
const cacheKeyPrefix = "authz:perms:"

// Cache stores resolved effective permission sets with per-key expiry. It is
// an explicit, injectable component: the in-process implementation below is
// the default, the redis implementation serves multi-instance deployments,
// and the resolver does not care which it gets. Backends swallow their own
// failures and report a miss instead; a broken cache must degrade to slower
// lookups, never to a denied or allowed request.
type Cache interface {
	Get(ctx context.Context, key string) ([]permission.Action, bool)
	Set(ctx context.Context, key string, actions []permission.Action, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

type memoryEntry struct {
	actions   []permission.Action
	expiresAt time.Time
}

// MemoryCache is a fine-grained-locked TTL map. Reads never block on
// unrelated writes beyond the RWMutex; staleness up to one TTL window is an
// accepted tradeoff, not a bug.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache constructs an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns the cached actions when present and unexpired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]permission.Action, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.actions, true
}

// Set stores the actions with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, actions []permission.Action, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{actions: actions, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete drops one key.
func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every key.
func (c *MemoryCache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
}
