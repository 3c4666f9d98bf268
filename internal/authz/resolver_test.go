package authz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/roles"
)

type stubRoleSource struct {
	mu    sync.Mutex
	byKey map[[2]int64][]roles.Role
	calls int
	err   error
}

func newStubRoleSource() *stubRoleSource {
	return &stubRoleSource{byKey: make(map[[2]int64][]roles.Role)}
}

func (s *stubRoleSource) add(userID, companyID int64, rs ...roles.Role) {
	s.byKey[[2]int64{userID, companyID}] = append(s.byKey[[2]int64{userID, companyID}], rs...)
}

func (s *stubRoleSource) ListForUser(ctx context.Context, userID, companyID int64) ([]roles.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.byKey[[2]int64{userID, companyID}], nil
}

func roleWith(name string, companyID *int64, perms ...permission.Action) roles.Role {
	return roles.Role{Name: name, CompanyID: companyID, Permissions: perms}
}

func TestEffectivePermissionsIsUnionAcrossRoles(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 10,
		roleWith("dispatcher", nil, permission.TaskView, permission.TaskAssign),
		roleWith("cashier", nil, permission.TaskView, permission.PaymentRecord),
	)
	r := NewResolver(source, NewMemoryCache(), time.Minute)

	set, err := r.EffectivePermissions(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]permission.Action{permission.TaskView, permission.TaskAssign, permission.PaymentRecord},
		set.List())
}

func TestEffectivePermissionsUnknownUserIsEmptyNotError(t *testing.T) {
	r := NewResolver(newStubRoleSource(), NewMemoryCache(), time.Minute)
	set, err := r.EffectivePermissions(context.Background(), 42, 10)
	require.NoError(t, err)
	assert.Empty(t, set.List())
}

func TestEffectivePermissionsCachesWithinTTL(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 10, roleWith("dispatcher", nil, permission.TaskView))
	r := NewResolver(source, NewMemoryCache(), time.Minute)

	for i := 0; i < 5; i++ {
		_, err := r.EffectivePermissions(context.Background(), 1, 10)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, source.calls)
}

func TestRevocationVisibleAfterTTLWithoutExplicitInvalidation(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 10, roleWith("dispatcher", nil, permission.TaskView, permission.TaskAssign))

	cache := NewMemoryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	r := NewResolver(source, cache, 30*time.Second)

	ok, err := r.HasPermission(context.Background(), 1, 10, permission.TaskAssign)
	require.NoError(t, err)
	assert.True(t, ok)

	// Revoke at the store; the cached entry still answers until it expires.
	source.mu.Lock()
	source.byKey[[2]int64{1, 10}] = []roles.Role{roleWith("dispatcher", nil, permission.TaskView)}
	source.mu.Unlock()

	ok, err = r.HasPermission(context.Background(), 1, 10, permission.TaskAssign)
	require.NoError(t, err)
	assert.True(t, ok, "stale answer inside the TTL window is accepted")

	now = now.Add(31 * time.Second)
	ok, err = r.HasPermission(context.Background(), 1, 10, permission.TaskAssign)
	require.NoError(t, err)
	assert.False(t, ok, "revocation must take effect within one TTL window")
}

func TestInvalidateUserForcesRefetch(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 10, roleWith("dispatcher", nil, permission.TaskView))
	r := NewResolver(source, NewMemoryCache(), time.Minute)

	_, err := r.EffectivePermissions(context.Background(), 1, 10)
	require.NoError(t, err)
	r.InvalidateUser(context.Background(), 1, 10)
	_, err = r.EffectivePermissions(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestTenantScopedRolesDoNotLeakAcrossCompanies(t *testing.T) {
	companyA, companyB := int64(1), int64(2)
	source := newStubRoleSource()
	// The store filter already scopes by company; the resolver keys its
	// cache by (user, company) so tenant answers stay separate too.
	source.add(7, companyA, roleWith("admin-a", &companyA, permission.UserCreate))
	source.add(7, companyB, roleWith("admin-b", &companyB, permission.AuditView))
	r := NewResolver(source, NewMemoryCache(), time.Minute)

	setA, err := r.EffectivePermissions(context.Background(), 7, companyA)
	require.NoError(t, err)
	setB, err := r.EffectivePermissions(context.Background(), 7, companyB)
	require.NoError(t, err)

	assert.True(t, setA.Has(permission.UserCreate))
	assert.False(t, setA.Has(permission.AuditView))
	assert.True(t, setB.Has(permission.AuditView))
	assert.False(t, setB.Has(permission.UserCreate))
}

func TestConcurrentMissesCollapseIntoOneLookup(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 10, roleWith("dispatcher", nil, permission.TaskView))
	r := NewResolver(source, NewMemoryCache(), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.EffectivePermissions(context.Background(), 1, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	source.mu.Lock()
	calls := source.calls
	source.mu.Unlock()
	assert.LessOrEqual(t, calls, 2, "singleflight should dedupe concurrent fills")
}

func TestResolverPropagatesStoreErrors(t *testing.T) {
	source := newStubRoleSource()
	source.err = errors.New("role store down")
	r := NewResolver(source, NewMemoryCache(), time.Minute)
	_, err := r.EffectivePermissions(context.Background(), 1, 10)
	assert.Error(t, err)
}
