// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Principal is the authenticated administrator behind a request.
// It is built from verified token claims and treated as opaque by the RBAC engine.
type Principal struct {
	UserID   int64
	Username string
	RoleID   int64
}

type principalContextKey struct{}

// WithPrincipal adds Principal to context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// GetPrincipal returns Principal from context, or nil for anonymous requests.
func GetPrincipal(ctx context.Context) *Principal {
	if v, ok := ctx.Value(principalContextKey{}).(*Principal); ok {
		return v
	}
	return nil
}

// GetUserID returns the principal's user ID or 0.
func GetUserID(ctx context.Context) int64 {
	if p := GetPrincipal(ctx); p != nil {
		return p.UserID
	}
	return 0
}

// GetRoleID returns the principal's role ID or 0.
func GetRoleID(ctx context.Context) int64 {
	if p := GetPrincipal(ctx); p != nil {
		return p.RoleID
	}
	return 0
}
