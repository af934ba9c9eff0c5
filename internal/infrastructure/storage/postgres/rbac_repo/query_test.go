package rbac_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/rbac"
)

const permissionCols = "id, parent_id, name, description, is_menu, sort_order, route_method, route_path, menu_meta, deleted, deleted_at, created_at, updated_at"

func TestPermissionColumns(t *testing.T) {
	repo := NewPermissionRepo(nil)
	assert.Equal(t, permissionCols, strings.Join(repo.cols, ", "))
}

func TestFindByRouteQuery(t *testing.T) {
	repo := NewPermissionRepo(nil)

	sql, args, err := repo.findByRouteQuery("POST", "/api/roles/rights").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT "+permissionCols+" FROM rbac_permissions WHERE deleted = $1 AND route_method = $2 AND route_path = $3 ORDER BY id LIMIT 1",
		sql)
	assert.Equal(t, []any{false, "POST", "/api/roles/rights"}, args)
}

func TestFilterQuery(t *testing.T) {
	repo := NewPermissionRepo(nil)
	menu := true

	tests := []struct {
		name      string
		filter    rbac.PermissionFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no filter",
			filter:    rbac.PermissionFilter{},
			wantWhere: "WHERE deleted = $1",
			wantArgs:  []any{false},
		},
		{
			name:      "search",
			filter:    rbac.PermissionFilter{Search: "role"},
			wantWhere: "WHERE deleted = $1 AND (name ILIKE $2 OR description ILIKE $3 OR route_path ILIKE $4)",
			wantArgs:  []any{false, "%role%", "%role%", "%role%"},
		},
		{
			name:      "menu only",
			filter:    rbac.PermissionFilter{IsMenu: &menu},
			wantWhere: "WHERE deleted = $1 AND is_menu = $2",
			wantArgs:  []any{false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.filterQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(sql, tt.wantWhere), sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCountWrapsFilter(t *testing.T) {
	repo := NewPermissionRepo(nil)
	q := repo.filterQuery(rbac.PermissionFilter{Search: "x"})

	sql, args, err := builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "SELECT COUNT(*) FROM (SELECT "), sql)
	assert.True(t, strings.HasSuffix(sql, ") AS sub"), sql)
	assert.Contains(t, sql, "route_path ILIKE $4")
	assert.Len(t, args, 4)
}

func TestPagedQuery(t *testing.T) {
	repo := NewPermissionRepo(nil)

	sql, _, err := paged(repo.selectLive().OrderBy("sort_order", "id"), rbac.Page{Page: 3, Limit: 10}).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "ORDER BY sort_order, id LIMIT 10 OFFSET 20"), sql)
}

func TestChildrenQuery(t *testing.T) {
	repo := NewPermissionRepo(nil)

	sql, args, err := repo.childrenQuery(5, false).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT EXISTS ( SELECT 1 FROM rbac_permissions WHERE parent_id = $1 AND deleted = $2 )", sql)
	assert.Equal(t, []any{int64(5), false}, args)

	sql, args, err = repo.childrenQuery(5, true).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "deleted")
	assert.Equal(t, []any{int64(5)}, args)
}

func TestStatsQuery(t *testing.T) {
	sql, args, err := statsQuery().ToSql()
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.Contains(t, sql, "COUNT(*) FILTER (WHERE NOT deleted AND is_menu) AS menu")
	assert.True(t, strings.HasSuffix(sql, "FROM rbac_permissions"))
}

func TestRoleGetQueryLocks(t *testing.T) {
	repo := NewRoleRepo(nil)

	sql, args, err := repo.getQuery(3, true).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, name, sort_order, description, is_super_role, deleted, created_at, updated_at FROM roles WHERE deleted = $1 AND id = $2 LIMIT 1 FOR UPDATE",
		sql)
	assert.Equal(t, []any{false, int64(3)}, args)

	sql, _, err = repo.getQuery(3, false).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "FOR UPDATE")
}

func TestHasQuery(t *testing.T) {
	sql, args, err := hasQuery(2, 9).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT EXISTS ( SELECT 1 FROM role_permissions WHERE permission_id = $1 AND role_id = $2 )", sql)
	assert.Equal(t, []any{int64(9), int64(2)}, args)
}
