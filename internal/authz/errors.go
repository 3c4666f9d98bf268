// Package authz is the single authorization entry point for every privileged
// operation: it resolves the acting identity, computes the effective
// permission set, applies contextual business rules, and reports each
// decision for audit.
package authz

import (
	"errors"

	"github.com/meridian-fsm/meridian/internal/platform/httpx"
)

// Internal denial reason codes. They are recorded in the audit trail for
// operators and never leave the process through an HTTP response, so a denied
// caller cannot probe resource existence or ownership.
const (
	ReasonNoIdentity        = "no_identity"
	ReasonMissingPermission = "missing_permission"
	ReasonCompanyMismatch   = "company_mismatch"
	ReasonNotOwner          = "not_owner"
	ReasonRoleIncompatible  = "role_incompatible"
	ReasonStoreUnavailable  = "store_unavailable"
)

// DenialError is the typed failure raised by the authorizer. It unwraps to
// httpx.ErrUnauthorized or httpx.ErrForbidden so callers and the HTTP error
// mapper can distinguish the two, and no more.
type DenialError struct {
	Reason string
	kind   error
}

func (e *DenialError) Error() string { return e.kind.Error() }

func (e *DenialError) Unwrap() error { return e.kind }

func forbidden(reason string) error {
	return &DenialError{Reason: reason, kind: httpx.ErrForbidden}
}

func unauthorized(reason string) error {
	return &DenialError{Reason: reason, kind: httpx.ErrUnauthorized}
}

// denialReason extracts the internal reason code for audit details.
func denialReason(err error) string {
	var denial *DenialError
	if errors.As(err, &denial) {
		return denial.Reason
	}
	return ""
}
