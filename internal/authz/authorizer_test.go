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
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
	"github.com/meridian-fsm/meridian/internal/shared"
)

type stubIdentity struct {
	identity shared.Identity
	err      error
}

func (s stubIdentity) CurrentIdentity(ctx context.Context) (shared.Identity, error) {
	if s.err != nil {
		return shared.Identity{}, s.err
	}
	return s.identity, nil
}

type captureRecorder struct {
	mu        sync.Mutex
	decisions []Decision
}

func (c *captureRecorder) RecordDecision(ctx context.Context, d Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions = append(c.decisions, d)
}

func (c *captureRecorder) last(t *testing.T) Decision {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.decisions)
	return c.decisions[len(c.decisions)-1]
}

func newTestAuthorizer(source RoleSource, identity IdentityProvider, recorder Recorder) *Authorizer {
	resolver := NewResolver(source, NewMemoryCache(), time.Minute)
	return NewAuthorizer(identity, resolver, nil, recorder, nil, nil)
}

func adminIdentity(companyID int64) shared.Identity {
	return shared.Identity{UserID: 1, CompanyID: companyID, UserName: "amira", RoleHint: "admin"}
}

func TestAuthorizeAdminHoldsEveryCatalogAction(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 10, roleWith("admin", nil, permission.Actions()...))
	a := newTestAuthorizer(source, stubIdentity{identity: adminIdentity(10)}, nil)

	authCtx, err := a.Authorize(context.Background(), permission.UserCreate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), authCtx.UserID)
	assert.Equal(t, int64(10), authCtx.CompanyID)
	assert.Contains(t, authCtx.Permissions, permission.UserCreate)
}

func TestAuthorizeWithoutIdentityIsUnauthorized(t *testing.T) {
	source := newStubRoleSource()
	a := newTestAuthorizer(source, stubIdentity{err: errors.New("no session")}, nil)

	_, err := a.Authorize(context.Background(), permission.TaskView)
	assert.True(t, errors.Is(err, httpx.ErrUnauthorized))
	assert.False(t, errors.Is(err, httpx.ErrForbidden))
}

func TestTechnicianAnyAndAllSemantics(t *testing.T) {
	source := newStubRoleSource()
	source.add(2, 10, roleWith("technician", nil, permission.TaskView, permission.AttendanceClock))
	identity := shared.Identity{UserID: 2, CompanyID: 10, RoleHint: "technician"}
	a := newTestAuthorizer(source, stubIdentity{identity: identity}, nil)

	_, err := a.AuthorizeAny(context.Background(), permission.UserCreate, permission.TaskView)
	require.NoError(t, err)

	_, err = a.AuthorizeAll(context.Background(), permission.TaskView, permission.UserCreate)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
}

func TestAuthorizeAnyEmptyListIsDenied(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 10, roleWith("admin", nil, permission.Actions()...))
	a := newTestAuthorizer(source, stubIdentity{identity: adminIdentity(10)}, nil)

	_, err := a.AuthorizeAny(context.Background())
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
}

func TestIdenticallyNamedRolesInOtherTenantDoNotApply(t *testing.T) {
	companyA, companyB := int64(1), int64(2)
	source := newStubRoleSource()
	// Two distinct role rows with the same display name, one per tenant.
	source.add(7, companyA, roleWith("ops-admin-a", &companyA, permission.TaskView))
	source.add(8, companyB, roleWith("ops-admin-b", &companyB, permission.TaskView, permission.AuditView))

	identityA := shared.Identity{UserID: 7, CompanyID: companyA}
	a := newTestAuthorizer(source, stubIdentity{identity: identityA}, nil)

	_, err := a.Authorize(context.Background(), permission.AuditView)
	assert.True(t, errors.Is(err, httpx.ErrForbidden),
		"permissions granted only in tenant B must not resolve for tenant A")
}

func TestRoleStoreFailureDeniesInsteadOfAllowing(t *testing.T) {
	source := newStubRoleSource()
	source.err = context.DeadlineExceeded
	a := newTestAuthorizer(source, stubIdentity{identity: adminIdentity(10)}, nil)

	_, err := a.Authorize(context.Background(), permission.TaskView)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
}

func TestDenialRecordsReasonForAudit(t *testing.T) {
	source := newStubRoleSource()
	recorder := &captureRecorder{}
	a := newTestAuthorizer(source, stubIdentity{identity: adminIdentity(10)}, recorder)

	_, err := a.Authorize(context.Background(), permission.TaskDelete)
	require.Error(t, err)

	d := recorder.last(t)
	assert.False(t, d.Allowed)
	assert.Equal(t, permission.TaskDelete, d.Action)
	assert.Equal(t, ReasonMissingPermission, d.Reason)
}

func TestAuthorizeLegacyMapsAtTheBoundary(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 10, roleWith("dispatcher", nil, permission.TaskAssign))
	a := newTestAuthorizer(source, stubIdentity{identity: adminIdentity(10)}, nil)

	_, err := a.AuthorizeLegacy(context.Background(), permission.LegacyAssignTasks)
	require.NoError(t, err)

	_, err = a.AuthorizeLegacy(context.Background(), permission.LegacyAction(999))
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
}
