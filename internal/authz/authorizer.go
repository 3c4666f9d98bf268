package authz

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/shared"
)

// IdentityProvider resolves the current authenticated identity. The
// authorizer treats it as opaque; it does not manage logins, tokens, or
// cookies.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (shared.Identity, error)
}

// ContextIdentity reads the identity placed in the request context by the
// session middleware. It is the default provider.
type ContextIdentity struct{}

// CurrentIdentity implements IdentityProvider.
func (ContextIdentity) CurrentIdentity(ctx context.Context) (shared.Identity, error) {
	id, ok := shared.IdentityFromContext(ctx)
	if !ok {
		return shared.Identity{}, unauthorized(ReasonNoIdentity)
	}
	return id, nil
}

// Decision describes one authorization outcome for recording.
type Decision struct {
	Actor      shared.Identity
	Action     permission.Action
	Resource   string
	ResourceID string
	Allowed    bool
	Reason     string
}

// Recorder receives decisions for the audit trail. Implementations must be
// fire-and-forget; the authorizer never waits on or fails because of them.
type Recorder interface {
	RecordDecision(ctx context.Context, d Decision)
}

// DecisionMetrics counts decisions; satisfied by observability.Metrics.
type DecisionMetrics interface {
	ObserveDecision(action string, allowed bool)
}

// Context is the minimal authorization context handed back to a privileged
// operation on success.
type Context struct {
	UserID      int64
	CompanyID   int64
	Permissions []permission.Action
}

// Authorizer wraps the resolver and policy engine behind the one contract
// privileged operations call. It is read-only with respect to the role
// store; a check never mutates anything but the cache.
type Authorizer struct {
	identity IdentityProvider
	resolver *Resolver
	policy   *PolicyEngine
	recorder Recorder
	metrics  DecisionMetrics
	logger   *slog.Logger
}

// NewAuthorizer constructs an Authorizer. recorder and metrics may be nil.
func NewAuthorizer(identity IdentityProvider, resolver *Resolver, policy *PolicyEngine, recorder Recorder, metrics DecisionMetrics, logger *slog.Logger) *Authorizer {
	if identity == nil {
		identity = ContextIdentity{}
	}
	return &Authorizer{
		identity: identity,
		resolver: resolver,
		policy:   policy,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
	}
}

// Authorize requires the action to be present in the caller's effective set.
func (a *Authorizer) Authorize(ctx context.Context, action permission.Action) (Context, error) {
	actor, set, err := a.resolve(ctx)
	if err != nil {
		return Context{}, err
	}
	if !set.Has(action) {
		return Context{}, a.deny(ctx, actor, action, ContextualInput{}, forbidden(ReasonMissingPermission))
	}
	a.observe(action, true)
	return a.grant(actor, set), nil
}

// AuthorizeAny succeeds when the effective set intersects the list. An empty
// list cannot intersect and is denied.
func (a *Authorizer) AuthorizeAny(ctx context.Context, actions ...permission.Action) (Context, error) {
	actor, set, err := a.resolve(ctx)
	if err != nil {
		return Context{}, err
	}
	if len(actions) == 0 || !set.HasAny(actions...) {
		return Context{}, a.deny(ctx, actor, first(actions), ContextualInput{}, forbidden(ReasonMissingPermission))
	}
	a.observe(first(actions), true)
	return a.grant(actor, set), nil
}

// AuthorizeAll succeeds only when every action is present.
func (a *Authorizer) AuthorizeAll(ctx context.Context, actions ...permission.Action) (Context, error) {
	actor, set, err := a.resolve(ctx)
	if err != nil {
		return Context{}, err
	}
	if !set.HasAll(actions...) {
		return Context{}, a.deny(ctx, actor, first(actions), ContextualInput{}, forbidden(ReasonMissingPermission))
	}
	a.observe(first(actions), true)
	return a.grant(actor, set), nil
}

// AuthorizeContextual performs the flat check, then evaluates the contextual
// predicates against the target. A contextual failure raises the same
// forbidden error as a flat failure; only the audit trail sees which
// predicate denied.
func (a *Authorizer) AuthorizeContextual(ctx context.Context, action permission.Action, in ContextualInput) (Context, error) {
	actor, set, err := a.resolve(ctx)
	if err != nil {
		return Context{}, err
	}
	if !set.Has(action) {
		return Context{}, a.deny(ctx, actor, action, in, forbidden(ReasonMissingPermission))
	}
	if a.policy == nil {
		return Context{}, a.deny(ctx, actor, action, in, forbidden(ReasonStoreUnavailable))
	}
	if err := a.policy.Evaluate(ctx, actor, in); err != nil {
		return Context{}, a.deny(ctx, actor, action, in, err)
	}
	a.record(ctx, Decision{
		Actor:      actor,
		Action:     action,
		Resource:   in.Resource,
		ResourceID: formatResourceID(in.ResourceID),
		Allowed:    true,
	})
	a.observe(action, true)
	return a.grant(actor, set), nil
}

func (a *Authorizer) resolve(ctx context.Context) (shared.Identity, permission.Set, error) {
	actor, err := a.identity.CurrentIdentity(ctx)
	if err != nil {
		return shared.Identity{}, nil, unauthorized(ReasonNoIdentity)
	}
	set, err := a.resolver.EffectivePermissions(ctx, actor.UserID, actor.CompanyID)
	if err != nil {
		// A role store failure or timeout denies; it never implicitly allows.
		if a.logger != nil {
			a.logger.Error("effective permission lookup failed", slog.Any("error", err))
		}
		return shared.Identity{}, nil, forbidden(ReasonStoreUnavailable)
	}
	return actor, set, nil
}

func (a *Authorizer) grant(actor shared.Identity, set permission.Set) Context {
	return Context{UserID: actor.UserID, CompanyID: actor.CompanyID, Permissions: set.List()}
}

func (a *Authorizer) deny(ctx context.Context, actor shared.Identity, action permission.Action, in ContextualInput, err error) error {
	a.record(ctx, Decision{
		Actor:      actor,
		Action:     action,
		Resource:   in.Resource,
		ResourceID: formatResourceID(in.ResourceID),
		Allowed:    false,
		Reason:     denialReason(err),
	})
	a.observe(action, false)
	return err
}

func (a *Authorizer) record(ctx context.Context, d Decision) {
	if a.recorder != nil {
		a.recorder.RecordDecision(ctx, d)
	}
}

func (a *Authorizer) observe(action permission.Action, allowed bool) {
	if a.metrics != nil {
		a.metrics.ObserveDecision(string(action), allowed)
	}
}

// AuthorizeLegacy adapts call sites still holding the retired numeric enum.
// The mapping happens here at the boundary, once; resolution only ever sees
// catalog actions.
func (a *Authorizer) AuthorizeLegacy(ctx context.Context, l permission.LegacyAction) (Context, error) {
	action := permission.FromLegacy(l)
	if !permission.IsValid(action) {
		return Context{}, forbidden(ReasonMissingPermission)
	}
	return a.Authorize(ctx, action)
}

func first(actions []permission.Action) permission.Action {
	if len(actions) == 0 {
		return ""
	}
	return actions[0]
}

func formatResourceID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
