package authz

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/roles"
)

// DefaultCacheTTL balances burst absorption against revocation latency: a
// revoked permission takes effect within one window even without an explicit
// invalidation call.
const DefaultCacheTTL = 30 * time.Second

// RoleSource loads the roles assigned to a user, filtered to roles that are
// global or belong to the given company.
type RoleSource interface {
	ListForUser(ctx context.Context, userID, companyID int64) ([]roles.Role, error)
}

// Resolver computes effective permission sets: the union of permissions
// across every role the user holds within the tenant. Results are cached per
// (user, company) key; concurrent misses for the same key collapse into a
// single store round-trip.
type Resolver struct {
	source RoleSource
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
}

// NewResolver constructs a Resolver. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewResolver(source RoleSource, cache Cache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Resolver{source: source, cache: cache, ttl: ttl}
}

// EffectivePermissions returns the user's effective permission set within
// the company. Unknown users resolve to the empty set, not an error.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID, companyID int64) (permission.Set, error) {
	key := cacheKey(userID, companyID)
	if actions, ok := r.cache.Get(ctx, key); ok {
		return permission.NewSet(actions...), nil
	}

	resultChan := r.group.DoChan(key, func() (any, error) {
		if actions, ok := r.cache.Get(ctx, key); ok {
			return actions, nil
		}
		assigned, err := r.source.ListForUser(ctx, userID, companyID)
		if err != nil {
			return nil, err
		}
		set := permission.Set{}
		for _, role := range assigned {
			for _, action := range role.Permissions {
				set.Add(action)
			}
		}
		actions := set.List()
		r.cache.Set(ctx, key, actions, r.ttl)
		return actions, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return permission.NewSet(res.Val.([]permission.Action)...), nil
	}
}

// HasPermission reports membership of a single action in the effective set.
func (r *Resolver) HasPermission(ctx context.Context, userID, companyID int64, action permission.Action) (bool, error) {
	set, err := r.EffectivePermissions(ctx, userID, companyID)
	if err != nil {
		return false, err
	}
	return set.Has(action), nil
}

// HasAnyPermission reports whether at least one action is present.
func (r *Resolver) HasAnyPermission(ctx context.Context, userID, companyID int64, actions ...permission.Action) (bool, error) {
	set, err := r.EffectivePermissions(ctx, userID, companyID)
	if err != nil {
		return false, err
	}
	return set.HasAny(actions...), nil
}

// HasAllPermissions reports whether every action is present.
func (r *Resolver) HasAllPermissions(ctx context.Context, userID, companyID int64, actions ...permission.Action) (bool, error) {
	set, err := r.EffectivePermissions(ctx, userID, companyID)
	if err != nil {
		return false, err
	}
	return set.HasAll(actions...), nil
}

// InvalidateUser drops the cached set for one (user, company) pair.
func (r *Resolver) InvalidateUser(ctx context.Context, userID, companyID int64) {
	r.cache.Delete(ctx, cacheKey(userID, companyID))
}

// Clear drops every cached set.
func (r *Resolver) Clear(ctx context.Context) {
	r.cache.Clear(ctx)
}

func cacheKey(userID, companyID int64) string {
	return fmt.Sprintf("%s%d:%d", cacheKeyPrefix, userID, companyID)
}
