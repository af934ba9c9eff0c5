package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "backoffice/internal/core/context"
	"backoffice/internal/domain/rbac"
)

func TestAuthorizeScenario(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	authz := f.authorizer(rbac.AuthorizerConfig{})

	got, err := f.editor.SetRolePermissions(ctx, f.roleA, []int64{3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, got.Granted)
	assert.Equal(t, []int64{1, 2, 3}, f.store.Granted(f.roleA))

	principalA := &appctx.Principal{UserID: 10, RoleID: f.roleA}
	res, err := authz.Authorize(ctx, principalA, "POST", "/api/roles/5/rights")
	require.NoError(t, err)
	assert.Equal(t, rbac.Allow, res.Decision)
	assert.Equal(t, rbac.ReasonGranted, res.Reason)
	require.NotNil(t, res.Node)
	assert.Equal(t, int64(3), res.Node.ID)

	principalB := &appctx.Principal{UserID: 11, RoleID: f.roleB}
	res, err = authz.Authorize(ctx, principalB, "POST", "/api/roles/5/rights")
	require.NoError(t, err)
	assert.Equal(t, rbac.Deny, res.Decision)
	assert.Equal(t, rbac.ReasonNotGranted, res.Reason)
}

func TestAuthorizeDenyOnMissingGrant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	authz := f.authorizer(rbac.AuthorizerConfig{})
	p := &appctx.Principal{UserID: 1, RoleID: f.roleB}

	res, err := authz.Authorize(ctx, p, "GET", "/admins")
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	f.store.Grant(f.roleB, 4)

	res, err = authz.Authorize(ctx, p, "GET", "/admins")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}

func TestAuthorizeSuperRoleBypass(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := &appctx.Principal{UserID: 1, RoleID: f.super}

	for _, cfg := range []rbac.AuthorizerConfig{{}, {FailClosed: true}} {
		authz := f.authorizer(cfg)
		for _, route := range [][2]string{
			{"POST", "/api/roles/5/rights"},
			{"GET", "/admins"},
			{"DELETE", "/totally/unknown/path"},
		} {
			res, err := authz.Authorize(ctx, p, route[0], route[1])
			require.NoError(t, err)
			assert.Equal(t, rbac.Allow, res.Decision, "%v", route)
			assert.Equal(t, rbac.ReasonSuperRole, res.Reason)
		}
	}
}

func TestAuthorizeSuperRoleIsAFlagNotAName(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	authz := f.authorizer(rbac.AuthorizerConfig{})

	impostor := f.store.AddRole(rbac.Role{Name: "超级管理员 "})
	res, err := authz.Authorize(ctx, &appctx.Principal{RoleID: impostor}, "GET", "/admins")
	require.NoError(t, err)
	assert.Equal(t, rbac.Deny, res.Decision)
}

func TestAuthorizeUnmatchedRoutes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := &appctx.Principal{UserID: 1, RoleID: f.roleB}

	res, err := f.authorizer(rbac.AuthorizerConfig{}).Authorize(ctx, p, "GET", "/totally/unknown/path")
	require.NoError(t, err)
	assert.Equal(t, rbac.Allow, res.Decision)
	assert.Equal(t, rbac.ReasonUnmatchedAllow, res.Reason)

	res, err = f.authorizer(rbac.AuthorizerConfig{FailClosed: true}).Authorize(ctx, p, "GET", "/totally/unknown/path")
	require.NoError(t, err)
	assert.Equal(t, rbac.Deny, res.Decision)
	assert.Equal(t, rbac.ReasonUnmatchedDeny, res.Reason)
}

func TestAuthorizePublicRoutes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	authz := f.authorizer(rbac.AuthorizerConfig{
		FailClosed:   true,
		PublicRoutes: []string{"POST /api/login", "/api/health*", " "},
	})
	p := &appctx.Principal{UserID: 1, RoleID: f.roleB}

	res, err := authz.Authorize(ctx, p, "GET", "/api/health/db")
	require.NoError(t, err)
	assert.Equal(t, rbac.ReasonPublicRoute, res.Reason)

	assert.True(t, authz.IsPublic("post", "/api/login/"))
	assert.False(t, authz.IsPublic("GET", "/api/login"))
	assert.True(t, authz.IsPublic("GET", "/api/healthz"))
	assert.False(t, authz.IsPublic("GET", "/api/roles"))
}

func TestAuthorizeUnauthenticatedAndUnknownRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	authz := f.authorizer(rbac.AuthorizerConfig{})

	res, err := authz.Authorize(ctx, nil, "GET", "/admins")
	require.NoError(t, err)
	assert.Equal(t, rbac.Deny, res.Decision)
	assert.Equal(t, rbac.ReasonUnauthenticated, res.Reason)

	res, err = authz.Authorize(ctx, &appctx.Principal{RoleID: 999}, "GET", "/admins")
	require.NoError(t, err)
	assert.Equal(t, rbac.Deny, res.Decision)
	assert.Equal(t, rbac.ReasonUnknownRole, res.Reason)
}

func TestAuthorizeStorageErrorPropagates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	authz := f.authorizer(rbac.AuthorizerConfig{})
	boom := errors.New("db down")
	f.store.Err = boom

	res, err := authz.Authorize(ctx, &appctx.Principal{RoleID: f.roleA}, "GET", "/admins")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, rbac.Deny, res.Decision)
}
