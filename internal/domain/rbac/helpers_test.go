package rbac_test

import (
	"backoffice/internal/core/tx"
	"backoffice/internal/domain/audit"
	"backoffice/internal/domain/rbac"
	"backoffice/internal/domain/rbac/rbactest"
)

func i64(v int64) *int64 { return &v }

func str(v string) *string { return &v }

// fixture is the catalog used across the tests:
//
//	1 System (menu)
//	└── 2 Roles (menu)
//	    └── 3 Role-Edit (menu, POST /api/roles/rights)
//	4 GET /admins (action)
type fixture struct {
	store    *rbactest.Store
	sink     *audit.MemorySink
	matcher  *rbac.PathMatcher
	editor   *rbac.Editor
	catalog  *rbac.CatalogService
	roles    *rbac.RoleService
	trees    *rbac.TreeService
	super    int64
	roleA    int64
	roleB    int64
	authzCfg rbac.AuthorizerConfig
}

func newFixture() *fixture {
	store := rbactest.New()
	store.AddNode(rbac.PermissionNode{ID: 1, Name: "System", Description: "系统管理", IsMenu: true})
	store.AddNode(rbac.PermissionNode{ID: 2, ParentID: i64(1), Name: "Roles", Description: "角色管理", IsMenu: true})
	store.AddNode(rbac.PermissionNode{
		ID: 3, ParentID: i64(2), Name: "Role-Edit", Description: "分配权限", IsMenu: true,
		RouteMethod: str("POST"), RoutePath: str(rbac.CanonicalRoute("/api/roles/{id}/rights")),
	})
	store.AddNode(rbac.PermissionNode{
		ID: 4, Name: "GET /admins", Description: "查看管理员",
		RouteMethod: str("GET"), RoutePath: str("/admins"),
	})

	f := &fixture{store: store, sink: &audit.MemorySink{}}
	f.super = store.AddRole(rbac.Role{Name: "超级管理员", IsSuperRole: true})
	f.roleA = store.AddRole(rbac.Role{Name: "editor"})
	f.roleB = store.AddRole(rbac.Role{Name: "viewer"})

	rec := audit.NewRecorder(f.sink)
	f.matcher = rbac.NewPathMatcher(store.Catalog(), rbac.MatcherConfig{Size: 64})
	f.editor = rbac.NewEditor(store.Catalog(), store.Roles(), store.Assignments(), tx.Nop{}, rec)
	f.catalog = rbac.NewCatalogService(store.Catalog(), store.Assignments(), tx.Nop{}, rec, f.matcher)
	f.roles = rbac.NewRoleService(store.Roles(), store.Assignments(), store.Catalog(), store.Admins(), tx.Nop{}, rec)
	f.trees = rbac.NewTreeService(store.Catalog(), store.Roles(), store.Assignments())
	return f
}

func (f *fixture) authorizer(cfg rbac.AuthorizerConfig) *rbac.Authorizer {
	return rbac.NewAuthorizer(f.matcher, f.store.Roles(), f.store.Assignments(), cfg)
}
