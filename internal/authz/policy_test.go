package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/httpx"
	"github.com/meridian-fsm/meridian/internal/roles"
	"github.com/meridian-fsm/meridian/internal/shared"
)

type stubDescriptors struct {
	byID map[int64]OwnershipDescriptor
	err  error
}

func (s stubDescriptors) OwnershipDescriptor(ctx context.Context, resource string, resourceID int64) (OwnershipDescriptor, error) {
	if s.err != nil {
		return OwnershipDescriptor{}, s.err
	}
	desc, ok := s.byID[resourceID]
	if !ok {
		return OwnershipDescriptor{}, httpx.ErrNotFound
	}
	return desc, nil
}

type stubDirectory struct {
	rolesByUser map[int64]string
	err         error
}

func (s stubDirectory) PrimaryRoleName(ctx context.Context, userID int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	name, ok := s.rolesByUser[userID]
	if !ok {
		return "", httpx.ErrNotFound
	}
	return name, nil
}

func actor(userID, companyID int64, role string) shared.Identity {
	return shared.Identity{UserID: userID, CompanyID: companyID, RoleHint: role}
}

func TestCompanyMismatchDeniesRegardlessOfFlatPermissions(t *testing.T) {
	engine := NewPolicyEngine(stubDescriptors{byID: map[int64]OwnershipDescriptor{
		55: {CompanyID: 2, OwnerID: 9},
	}}, nil)

	err := engine.Evaluate(context.Background(), actor(1, 1, roles.RoleAdmin), ContextualInput{
		Resource:   "task",
		ResourceID: 55,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
	assert.Equal(t, ReasonCompanyMismatch, denialReason(err))
}

func TestCompanyMatchAppliesByDefaultWithoutOptIn(t *testing.T) {
	engine := NewPolicyEngine(stubDescriptors{byID: map[int64]OwnershipDescriptor{
		55: {CompanyID: 1, OwnerID: 9},
	}}, nil)

	// No Checks declared: the company match still runs because a resource
	// id was supplied.
	err := engine.Evaluate(context.Background(), actor(1, 1, ""), ContextualInput{
		Resource:   "task",
		ResourceID: 55,
	})
	assert.NoError(t, err)

	err = engine.Evaluate(context.Background(), actor(1, 3, ""), ContextualInput{
		Resource:   "task",
		ResourceID: 55,
	})
	assert.Error(t, err)
}

func TestOwnershipAllowsOwnerAndAssignee(t *testing.T) {
	assignee := int64(4)
	engine := NewPolicyEngine(stubDescriptors{byID: map[int64]OwnershipDescriptor{
		7: {CompanyID: 1, OwnerID: 3, AssigneeID: &assignee},
	}}, nil)
	in := ContextualInput{Resource: "attendance", ResourceID: 7, Checks: []Check{CheckOwnership}}

	assert.NoError(t, engine.Evaluate(context.Background(), actor(3, 1, ""), in))
	assert.NoError(t, engine.Evaluate(context.Background(), actor(4, 1, ""), in))

	err := engine.Evaluate(context.Background(), actor(5, 1, ""), in)
	require.Error(t, err)
	assert.Equal(t, ReasonNotOwner, denialReason(err))
}

func TestAssignmentRoleCompatibility(t *testing.T) {
	directory := stubDirectory{rolesByUser: map[int64]string{
		20: roles.RoleTechnician,
		21: roles.RoleAdmin,
		22: roles.RoleSupervisor,
	}}
	engine := NewPolicyEngine(nil, directory)

	cases := []struct {
		name      string
		actorRole string
		target    int64
		allowed   bool
	}{
		{"supervisor to technician", roles.RoleSupervisor, 20, true},
		{"supervisor to admin", roles.RoleSupervisor, 21, false},
		{"supervisor to supervisor", roles.RoleSupervisor, 22, false},
		{"admin to technician", roles.RoleAdmin, 20, true},
		{"admin to admin", roles.RoleAdmin, 21, true},
		{"technician to technician", roles.RoleTechnician, 20, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := engine.Evaluate(context.Background(), actor(2, 1, tc.actorRole), ContextualInput{
				TargetUserID: tc.target,
				Checks:       []Check{CheckAssignment},
			})
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, ReasonRoleIncompatible, denialReason(err))
			}
		})
	}
}

func TestAssignmentLooksUpActorRoleWhenHintMissing(t *testing.T) {
	directory := stubDirectory{rolesByUser: map[int64]string{
		2:  roles.RoleSupervisor,
		20: roles.RoleTechnician,
	}}
	engine := NewPolicyEngine(nil, directory)

	err := engine.Evaluate(context.Background(), actor(2, 1, ""), ContextualInput{
		TargetUserID: 20,
		Checks:       []Check{CheckAssignment},
	})
	assert.NoError(t, err)
}

func TestDescriptorLookupFailureDenies(t *testing.T) {
	engine := NewPolicyEngine(stubDescriptors{err: context.DeadlineExceeded}, nil)
	err := engine.Evaluate(context.Background(), actor(1, 1, ""), ContextualInput{
		Resource:   "order",
		ResourceID: 8,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
	assert.Equal(t, ReasonStoreUnavailable, denialReason(err))
}

func TestContextualDenialIndistinguishableFromFlatForCaller(t *testing.T) {
	source := newStubRoleSource()
	source.add(1, 1, roleWith("supervisor", nil, permission.TaskAssign))
	identity := stubIdentity{identity: actor(1, 1, roles.RoleSupervisor)}
	engine := NewPolicyEngine(stubDescriptors{byID: map[int64]OwnershipDescriptor{
		5: {CompanyID: 2, OwnerID: 1},
	}}, nil)
	resolver := NewResolver(source, NewMemoryCache(), time.Minute)
	a := NewAuthorizer(identity, resolver, engine, nil, nil, nil)

	// Flat failure.
	_, flatErr := a.Authorize(context.Background(), permission.TaskDelete)
	// Contextual failure.
	_, ctxErr := a.AuthorizeContextual(context.Background(), permission.TaskAssign, ContextualInput{
		Resource:   "task",
		ResourceID: 5,
	})

	assert.True(t, errors.Is(flatErr, httpx.ErrForbidden))
	assert.True(t, errors.Is(ctxErr, httpx.ErrForbidden))
	assert.Equal(t, flatErr.Error(), ctxErr.Error(),
		"caller-visible error text must not reveal which check failed")
}
