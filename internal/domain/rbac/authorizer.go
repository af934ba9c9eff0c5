package rbac

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"backoffice/internal/core/apperror"
	appctx "backoffice/internal/core/context"
	"backoffice/pkg/logger"
)

// Resolver maps a request route to a catalog node.
type Resolver interface {
	Resolve(ctx context.Context, rawPath, method string) (*PermissionNode, bool, error)
}

// AuthorizerConfig controls the decisions that do not depend on grants.
type AuthorizerConfig struct {
	// FailClosed denies routes that no catalog node owns. The default allows them.
	FailClosed   bool
	PublicRoutes []string
}

// Authorizer decides whether a principal may call a route.
type Authorizer struct {
	resolver    Resolver
	roles       RoleRepository
	assignments AssignmentRepository
	public      *PublicRoutes
	failClosed  bool
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(resolver Resolver, roles RoleRepository, assignments AssignmentRepository, cfg AuthorizerConfig) *Authorizer {
	return &Authorizer{
		resolver:    resolver,
		roles:       roles,
		assignments: assignments,
		public:      ParsePublicRoutes(cfg.PublicRoutes),
		failClosed:  cfg.FailClosed,
	}
}

// IsPublic reports whether the route is on the public allowlist.
func (a *Authorizer) IsPublic(method, rawPath string) bool {
	return a.public.Match(method, rawPath)
}

// FailClosed reports whether unmatched routes are denied.
func (a *Authorizer) FailClosed() bool {
	return a.failClosed
}

// Authorize returns the decision for principal calling (method, rawPath).
// A DENY is a result, not an error; errors only come from storage.
func (a *Authorizer) Authorize(ctx context.Context, principal *appctx.Principal, method, rawPath string) (Result, error) {
	ctx, span := tracer.Start(ctx, "rbac.authorize")
	defer span.End()

	res, err := a.decide(ctx, principal, method, rawPath)
	if err != nil {
		span.RecordError(err)
		return Result{Decision: Deny}, err
	}
	span.SetAttributes(
		attribute.String("rbac.decision", string(res.Decision)),
		attribute.String("rbac.reason", res.Reason),
	)
	if !res.Allowed() {
		logger.Info(ctx, "access denied",
			"method", method,
			"path", rawPath,
			"reason", res.Reason,
		)
	}
	return res, nil
}

func (a *Authorizer) decide(ctx context.Context, principal *appctx.Principal, method, rawPath string) (Result, error) {
	if principal == nil {
		return Result{Decision: Deny, Reason: ReasonUnauthenticated}, nil
	}

	role, err := a.roles.Get(ctx, principal.RoleID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return Result{Decision: Deny, Reason: ReasonUnknownRole}, nil
		}
		return Result{}, fmt.Errorf("load role %d: %w", principal.RoleID, err)
	}
	if role.IsSuperRole {
		return Result{Decision: Allow, Reason: ReasonSuperRole}, nil
	}

	if a.public.Match(method, rawPath) {
		return Result{Decision: Allow, Reason: ReasonPublicRoute}, nil
	}

	node, found, err := a.resolver.Resolve(ctx, rawPath, method)
	if err != nil {
		return Result{}, err
	}
	if !found {
		if a.failClosed {
			return Result{Decision: Deny, Reason: ReasonUnmatchedDeny}, nil
		}
		return Result{Decision: Allow, Reason: ReasonUnmatchedAllow}, nil
	}

	ok, err := a.assignments.Has(ctx, role.ID, node.ID)
	if err != nil {
		return Result{}, fmt.Errorf("check grant role=%d permission=%d: %w", role.ID, node.ID, err)
	}
	if !ok {
		return Result{Decision: Deny, Reason: ReasonNotGranted, Node: node}, nil
	}
	return Result{Decision: Allow, Reason: ReasonGranted, Node: node}, nil
}

// IsSuperRole reports whether the principal's role bypasses permission checks.
func (a *Authorizer) IsSuperRole(ctx context.Context, principal *appctx.Principal) (bool, error) {
	if principal == nil {
		return false, nil
	}
	role, err := a.roles.Get(ctx, principal.RoleID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return role.IsSuperRole, nil
}
