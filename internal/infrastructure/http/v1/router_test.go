package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core/tx"
	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/auth/authtest"
	"backoffice/internal/domain/rbac"
	"backoffice/internal/domain/rbac/rbactest"
	"backoffice/pkg/logger"
)

func ptr(s string) *string { return &s }

func id(v int64) *int64 { return &v }

type testAPI struct {
	engine *gin.Engine
	store  *rbactest.Store
	sink   *audit.MemorySink
	editor int64
}

// newTestAPI builds the full router over in-memory storage:
//
//	1 System (menu)
//	└── 2 Roles (menu)
//	    ├── 3 role list (menu, GET /api/roles)
//	    └── 4 assign rights (menu, POST /api/roles/{id}/rights)
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := rbactest.New()
	store.AddNode(rbac.PermissionNode{ID: 1, Name: "System", Description: "系统管理", IsMenu: true})
	store.AddNode(rbac.PermissionNode{ID: 2, ParentID: id(1), Name: "Roles", Description: "角色管理", IsMenu: true})
	store.AddNode(rbac.PermissionNode{
		ID: 3, ParentID: id(2), Name: "GET /api/roles", Description: "角色列表", IsMenu: true,
		RouteMethod: ptr("GET"), RoutePath: ptr("/api/roles"),
	})
	store.AddNode(rbac.PermissionNode{
		ID: 4, ParentID: id(2), Name: "POST /api/roles/rights", Description: "分配权限", IsMenu: true,
		RouteMethod: ptr("POST"), RoutePath: ptr(rbac.CanonicalRoute("/api/roles/{id}/rights")),
	})
	superRole := store.AddRole(rbac.Role{Name: "超级管理员", IsSuperRole: true})
	editorRole := store.AddRole(rbac.Role{Name: "editor"})

	admins := authtest.NewAdmins()
	admins.Add("root", "root-pass", superRole)
	admins.Add("ed", "ed-pass", editorRole)

	sink := &audit.MemorySink{}
	rec := audit.NewRecorder(sink)
	matcher := rbac.NewPathMatcher(store.Catalog(), rbac.DefaultMatcherConfig())

	engine := NewRouter(RouterConfig{
		Logger:      logger.NewNop(),
		AuthService: auth.NewService(admins, auth.NewMemoryRevocations(), auth.NewJWTService(auth.DefaultJWTConfig("router-test-secret-0123")), rec),
		Authorizer: rbac.NewAuthorizer(matcher, store.Roles(), store.Assignments(), rbac.AuthorizerConfig{
			PublicRoutes: []string{"POST /api/login", "POST /api/logout"},
		}),
		Catalog:       rbac.NewCatalogService(store.Catalog(), store.Assignments(), tx.Nop{}, rec, matcher),
		Roles:         rbac.NewRoleService(store.Roles(), store.Assignments(), store.Catalog(), store.Admins(), tx.Nop{}, rec),
		Editor:        rbac.NewEditor(store.Catalog(), store.Roles(), store.Assignments(), tx.Nop{}, rec),
		Trees:         rbac.NewTreeService(store.Catalog(), store.Roles(), store.Assignments()),
		RouteCache:    matcher,
		OperationLogs: sink,
	})
	gin.SetMode(gin.TestMode)

	return &testAPI{engine: engine, store: store, sink: sink, editor: editorRole}
}

type envelope struct {
	Code       int             `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Details    map[string]any  `json:"details"`
	Pagination *struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func (a *testAPI) call(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (a *testAPI) login(t *testing.T, username, password string) string {
	t.Helper()
	status, env := a.call(t, "POST", "/api/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, status, env.Message)

	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))
	return session.Token
}

func TestRoleRightsFlow(t *testing.T) {
	api := newTestAPI(t)
	root := api.login(t, "root", "root-pass")
	ed := api.login(t, "ed", "ed-pass")

	status, env := api.call(t, "GET", "/api/roles", ed, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "权限不足", env.Message)

	status, env = api.call(t, "POST", "/api/roles/2/rights", root, map[string]any{"right_ids": "3"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var assignment rbac.Assignment
	require.NoError(t, json.Unmarshal(env.Data, &assignment))
	assert.Equal(t, []int64{1, 2, 3}, assignment.Granted)

	status, _ = api.call(t, "GET", "/api/roles", ed, nil)
	assert.Equal(t, http.StatusOK, status)

	// the editor may list roles but not assign rights
	status, _ = api.call(t, "POST", "/api/roles/2/rights", ed, map[string]any{"rights": []int{3}})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = api.call(t, "GET", "/api/permissions/menu", ed, nil)
	require.Equal(t, http.StatusOK, status)
	var menu []rbac.MenuItem
	require.NoError(t, json.Unmarshal(env.Data, &menu))
	require.Len(t, menu, 1)
	assert.Equal(t, "系统管理", menu[0].Title)
	require.Len(t, menu[0].Children, 1)
	require.Len(t, menu[0].Children[0].Children, 1)
	assert.Equal(t, "/api/roles", menu[0].Children[0].Children[0].Path)
}

func TestSetRightsInput(t *testing.T) {
	api := newTestAPI(t)
	root := api.login(t, "root", "root-pass")

	status, env := api.call(t, "POST", "/api/roles/2/rights", root, map[string]any{"rights": []int{3, 99}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Details, "ids")
	assert.Empty(t, api.store.Granted(api.editor))

	status, _ = api.call(t, "POST", "/api/roles/2/rights", root, map[string]any{"right_ids": "3, 0,abc"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []int64{1, 2, 3}, api.store.Granted(api.editor))

	status, _ = api.call(t, "POST", "/api/roles/77/rights", root, map[string]any{"right_ids": []int{3}})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRoleEditKeepsSuperRole(t *testing.T) {
	api := newTestAPI(t)
	root := api.login(t, "root", "root-pass")
	ed := api.login(t, "ed", "ed-pass")

	status, env := api.call(t, "PUT", "/api/roles/1", root, map[string]any{"name": "Administrators", "description": "renamed"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = api.call(t, "GET", "/api/roles", root, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, "DELETE", "/api/roles/1", root, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, env = api.call(t, "PUT", "/api/roles/2", root, map[string]any{"name": "editor", "is_super_role": true})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = api.call(t, "GET", "/api/roles", ed, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newTestAPI(t)
	ed := api.login(t, "ed", "ed-pass")

	status, _ := api.call(t, "GET", "/api/me", ed, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, "POST", "/api/logout", ed, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := api.call(t, "GET", "/api/me", ed, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "令牌已失效或已登出", env.Message)

	status, env = api.call(t, "GET", "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "用户未登录", env.Message)
}

func TestLoginFailure(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.call(t, "POST", "/api/login", "", map[string]string{"username": "ed", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "用户名或密码错误", env.Message)

	status, _ = api.call(t, "POST", "/api/login", "", map[string]string{"username": "ed"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPermissionLifecycle(t *testing.T) {
	api := newTestAPI(t)
	root := api.login(t, "root", "root-pass")

	status, env := api.call(t, "POST", "/api/permissions", root, map[string]any{
		"pid": 2, "name": "DELETE /api/roles", "description": "删除角色",
		"method": "delete", "path": "/api/roles/{id}",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	var node rbac.PermissionNode
	require.NoError(t, json.Unmarshal(env.Data, &node))
	require.NotNil(t, node.RoutePath)
	assert.Equal(t, "/api/roles", *node.RoutePath)
	assert.Equal(t, "DELETE", *node.RouteMethod)

	status, _ = api.call(t, "POST", "/api/permissions", root, map[string]any{"name": "DELETE /api/roles"})
	assert.Equal(t, http.StatusConflict, status)

	status, env = api.call(t, "GET", "/api/permissions?search=roles&limit=2", root, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(3), env.Pagination.Total)

	path := "/api/permissions/" + itoa(node.ID)
	status, _ = api.call(t, "DELETE", path, root, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = api.call(t, "GET", "/api/permissions/deleted", root, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), env.Pagination.Total)

	status, _ = api.call(t, "POST", path+"/restore", root, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = api.call(t, "DELETE", path+"/purge", root, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = api.call(t, "GET", "/api/permissions/abc", root, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = api.call(t, "GET", "/api/operation-logs?module=permission", root, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(3), env.Pagination.Total)
}

func TestCacheEndpoints(t *testing.T) {
	api := newTestAPI(t)
	root := api.login(t, "root", "root-pass")
	ed := api.login(t, "ed", "ed-pass")

	api.call(t, "GET", "/api/roles", ed, nil)

	status, env := api.call(t, "GET", "/api/permissions/cache/stats", root, nil)
	require.Equal(t, http.StatusOK, status)
	var stats rbac.MatcherStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Positive(t, stats.Size)

	status, env = api.call(t, "POST", "/api/permissions/cache/invalidate", root, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Zero(t, stats.Size)
}

func TestRoutesForSync(t *testing.T) {
	api := newTestAPI(t)

	routes := Routes(api.engine)
	assert.Contains(t, routes, rbac.Route{Method: "POST", Path: "/api/roles/:id/rights"})
	for _, r := range routes {
		assert.NotContains(t, r.Path, "/health/")
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest("GET", "/health/live", nil)
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
