package authz

import (
	"context"

	"github.com/meridian-fsm/meridian/internal/roles"
	"github.com/meridian-fsm/meridian/internal/shared"
)

// OwnershipDescriptor is the narrow ownership view the policy engine needs
// from a resource: which tenant it belongs to, who created it, and who it is
// assigned to, if anyone.
type OwnershipDescriptor struct {
	CompanyID  int64
	OwnerID    int64
	AssigneeID *int64
}

// DescriptorSource fetches ownership descriptors from the resource stores.
// The policy engine only ever reads.
type DescriptorSource interface {
	OwnershipDescriptor(ctx context.Context, resource string, resourceID int64) (OwnershipDescriptor, error)
}

// RoleDirectory resolves a user's primary role name. Needed only by the
// assignment check, which is the one predicate that performs its own store
// round-trip.
type RoleDirectory interface {
	PrimaryRoleName(ctx context.Context, userID int64) (string, error)
}

// Check names a contextual predicate a call site opts into. The company
// match is not listed here: it applies automatically whenever a resource is
// involved.
type Check string

const (
	// CheckOwnership requires the actor to be the resource's owner or
	// assignee. Lets a technician act on their own records without holding
	// the blanket permission.
	CheckOwnership Check = "ownership"
	// CheckAssignment requires the actor's role to be allowed to assign to
	// the target user's role.
	CheckAssignment Check = "assignment"
)

// ContextualInput carries the target of a contextual authorization.
// Descriptor may be pre-fetched by the caller; when nil and a ResourceID is
// given the engine loads it from the DescriptorSource.
type ContextualInput struct {
	Resource     string
	ResourceID   int64
	Descriptor   *OwnershipDescriptor
	TargetUserID int64
	Checks       []Check
}

// PolicyEngine evaluates the contextual predicates that run after a flat
// permission check passes.
type PolicyEngine struct {
	descriptors DescriptorSource
	directory   RoleDirectory
}

// NewPolicyEngine constructs a PolicyEngine.
func NewPolicyEngine(descriptors DescriptorSource, directory RoleDirectory) *PolicyEngine {
	return &PolicyEngine{descriptors: descriptors, directory: directory}
}

// Evaluate runs the company match first (cheapest, most security-critical),
// then the checks the call site declared. Any failure returns a forbidden
// denial whose reason code is visible to audit only.
func (e *PolicyEngine) Evaluate(ctx context.Context, actor shared.Identity, in ContextualInput) error {
	desc := in.Descriptor
	if desc == nil && in.ResourceID != 0 {
		if e.descriptors == nil {
			return forbidden(ReasonStoreUnavailable)
		}
		loaded, err := e.descriptors.OwnershipDescriptor(ctx, in.Resource, in.ResourceID)
		if err != nil {
			// Includes timeouts: an unverifiable resource is denied, never
			// implicitly allowed.
			return forbidden(ReasonStoreUnavailable)
		}
		desc = &loaded
	}

	if desc != nil && desc.CompanyID != actor.CompanyID {
		return forbidden(ReasonCompanyMismatch)
	}

	for _, check := range in.Checks {
		switch check {
		case CheckOwnership:
			if desc == nil {
				return forbidden(ReasonStoreUnavailable)
			}
			if !ownsResource(actor.UserID, *desc) {
				return forbidden(ReasonNotOwner)
			}
		case CheckAssignment:
			if err := e.checkAssignment(ctx, actor, in.TargetUserID); err != nil {
				return err
			}
		default:
			return forbidden(ReasonStoreUnavailable)
		}
	}
	return nil
}

func ownsResource(userID int64, desc OwnershipDescriptor) bool {
	if desc.OwnerID == userID {
		return true
	}
	return desc.AssigneeID != nil && *desc.AssigneeID == userID
}

func (e *PolicyEngine) checkAssignment(ctx context.Context, actor shared.Identity, targetUserID int64) error {
	if e.directory == nil || targetUserID == 0 {
		return forbidden(ReasonStoreUnavailable)
	}
	actorRole := actor.RoleHint
	if actorRole == "" {
		name, err := e.directory.PrimaryRoleName(ctx, actor.UserID)
		if err != nil {
			return forbidden(ReasonStoreUnavailable)
		}
		actorRole = name
	}
	targetRole, err := e.directory.PrimaryRoleName(ctx, targetUserID)
	if err != nil {
		return forbidden(ReasonStoreUnavailable)
	}
	if !canAssign(actorRole, targetRole) {
		return forbidden(ReasonRoleIncompatible)
	}
	return nil
}

// canAssign encodes role compatibility for assignment: admins assign to
// anyone, supervisors only to technicians.
func canAssign(actorRole, targetRole string) bool {
	switch actorRole {
	case roles.RoleAdmin:
		return true
	case roles.RoleSupervisor:
		return targetRole == roles.RoleTechnician
	default:
		return false
	}
}
