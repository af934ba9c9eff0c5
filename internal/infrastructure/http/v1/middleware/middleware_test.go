package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core/apperror"
	appctx "backoffice/internal/core/context"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/rbac"
	"backoffice/internal/domain/rbac/rbactest"
	"backoffice/internal/infrastructure/http/v1/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenTable map[string]*auth.Claims

func (t tokenTable) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	if c, ok := t[token]; ok {
		return c, nil
	}
	return nil, apperror.NewUnauthorized("认证令牌无效或已过期")
}

func ptr(s string) *string { return &s }

// newEngine wires the production middleware order around an authorizer over
// a catalog with one managed route, GET /api/admins, granted to the editor role.
func newEngine(t *testing.T, failClosed bool) *gin.Engine {
	t.Helper()

	store := rbactest.New()
	node := store.AddNode(rbac.PermissionNode{Name: "GET /api/admins", RouteMethod: ptr("GET"), RoutePath: ptr("/api/admins")})
	super := store.AddRole(rbac.Role{Name: "root", IsSuperRole: true})
	editor := store.AddRole(rbac.Role{Name: "editor"})
	viewer := store.AddRole(rbac.Role{Name: "viewer"})
	store.Grant(editor, node)

	authz := rbac.NewAuthorizer(
		rbac.NewPathMatcher(store.Catalog(), rbac.DefaultMatcherConfig()),
		store.Roles(), store.Assignments(),
		rbac.AuthorizerConfig{FailClosed: failClosed, PublicRoutes: []string{"POST /api/login", "/health*"}},
	)
	tokens := tokenTable{
		"super":  {UserID: 1, Username: "root", RoleID: super},
		"editor": {UserID: 2, Username: "ed", RoleID: editor},
		"viewer": {UserID: 3, Username: "vi", RoleID: viewer},
	}

	r := gin.New()
	r.Use(Trace(), ErrorHandler(), Recovery())
	r.Use(Auth(tokens, authz), Authorize(authz))

	ok := func(c *gin.Context) {
		p := appctx.GetPrincipal(c.Request.Context())
		name := ""
		if p != nil {
			name = p.Username
		}
		c.JSON(http.StatusOK, dto.NewEnvelope(http.StatusOK, "ok", name))
	}
	r.GET("/api/admins/:id", ok)
	r.GET("/api/unmanaged", ok)
	r.POST("/api/login", ok)
	r.GET("/health/live", ok)
	r.GET("/boom", func(*gin.Context) { panic("boom") })
	r.GET("/fail", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })
	return r
}

func do(r *gin.Engine, method, path, token string) (*httptest.ResponseRecorder, dto.Envelope) {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env dto.Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestAuthorizeMiddleware(t *testing.T) {
	r := newEngine(t, false)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantMsg    string
	}{
		{"granted with numeric id", "GET", "/api/admins/42", "editor", 200, "ok"},
		{"not granted", "GET", "/api/admins/42", "viewer", 403, "权限不足"},
		{"super role", "GET", "/api/admins/42", "super", 200, "ok"},
		{"unmatched route fails open", "GET", "/api/unmanaged", "viewer", 200, "ok"},
		{"missing token", "GET", "/api/admins/1", "", 401, "用户未登录"},
		{"bad token", "GET", "/api/admins/1", "forged", 401, "认证令牌无效或已过期"},
		{"public route without token", "POST", "/api/login", "", 200, "ok"},
		{"public prefix", "GET", "/health/live", "forged", 200, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(r, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus, env.Code)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestAuthorizeFailClosed(t *testing.T) {
	r := newEngine(t, true)

	w, env := do(r, "GET", "/api/unmanaged", "viewer")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "权限不足", env.Message)

	w, _ = do(r, "GET", "/api/unmanaged", "super")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublicRouteKeepsValidPrincipal(t *testing.T) {
	r := newEngine(t, false)

	_, env := do(r, "POST", "/api/login", "editor")
	assert.Equal(t, "ed", env.Data)
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	r := newEngine(t, false)

	w, env := do(r, "GET", "/fail", "super")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", env.Message)
	assert.NotContains(t, w.Body.String(), "db down")

	w, env = do(r, "GET", "/boom", "super")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, http.StatusInternalServerError, env.Code)
}

func TestRecoveryReportsRequestID(t *testing.T) {
	r := newEngine(t, false)

	req := httptest.NewRequest("GET", "/boom", nil)
	req.Header.Set("Authorization", "Bearer super")
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var env dto.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Internal server error", env.Message)
	assert.Equal(t, map[string]any{"request_id": "req-42"}, env.Details)
	assert.NotContains(t, w.Body.String(), "panic")

	w, env = do(r, "GET", "/fail", "super")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Nil(t, env.Details)
}

func TestTraceSetsHeaders(t *testing.T) {
	r := newEngine(t, false)

	req := httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer abc")
	require.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("bearer ")
	assert.False(t, ok)
}
