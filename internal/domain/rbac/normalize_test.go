package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"root", "/", "/"},
		{"empty", "", "/"},
		{"plain", "/api/admins", "/api/admins"},
		{"trailing slash", "/api/admins/", "/api/admins"},
		{"trailing id", "/api/admins/42", "/api/admins"},
		{"trailing id and slash", "/api/admins/42/", "/api/admins"},
		{"inner id", "/api/roles/5/rights", "/api/roles/rights"},
		{"query", "/api/permissions?page=2&limit=10", "/api/permissions"},
		{"fragment", "/api/permissions#top", "/api/permissions"},
		{"double slashes", "//api//roles///7", "/roles"},
		{"missing leading slash", "api/roles", "/api/roles"},
		{"absolute url", "https://admin.example.com/api/roles/9?x=1", "/api/roles"},
		{"host only", "http://admin.example.com", "/"},
		{"only ids", "/1/2/3", "/"},
		{"alphanumeric kept", "/api/v2/items/a1", "/api/v2/items/a1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestNormalizePathIsIdempotent(t *testing.T) {
	inputs := []string{
		"/", "", "/api/admins/42/", "https://h/api/x/1?q=2", "//a//b/3/", "x/y/z/",
		"/api/roles/5/rights", "/1", "/api/v1/", "///", "/api/menus?x=/1/",
	}
	for _, in := range inputs {
		once := NormalizePath(in)
		assert.Equal(t, once, NormalizePath(once), "input %q", in)
	}
}

func TestNormalizePathStripsIDs(t *testing.T) {
	assert.Equal(t, "/admins", NormalizePath("/admins/42"))
	assert.Equal(t, NormalizePath("/admins/42"), NormalizePath("/admins/7"))
}

func TestCanonicalRoute(t *testing.T) {
	assert.Equal(t, "/api/roles/rights", CanonicalRoute("/api/roles/{id}/rights"))
	assert.Equal(t, "/api/roles/rights", CanonicalRoute("/api/roles/:id/rights"))
	assert.Equal(t, "/static", CanonicalRoute("/static/*filepath"))
	assert.Equal(t, "/api/permissions", CanonicalRoute("/api/permissions/"))
	assert.Equal(t, CanonicalRoute("/api/roles/:id/rights"), NormalizePath("/api/roles/5/rights"))
}

func TestRouteCacheKey(t *testing.T) {
	assert.Equal(t, "POST|/api/roles/rights", RouteCacheKey("post", "/api/roles/5/rights/"))
}
