// Package rbac resolves administrative requests to permission decisions.
//
// The permission catalog is a self-referential tree: menu nodes group the
// navigation, action nodes carry an HTTP route. A role holds an upward-closed
// set of catalog nodes; a request is allowed when the node matching its route
// belongs to the caller's role.
package rbac

import (
	"strings"
	"time"
)

// DefaultMenuIcon is used for menu items without an explicit icon.
const DefaultMenuIcon = "ri:file-list-line"

// PermissionNode is one entry of the permission catalog.
type PermissionNode struct {
	ID          int64      `db:"id" json:"id"`
	ParentID    *int64     `db:"parent_id" json:"parentId"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	IsMenu      bool       `db:"is_menu" json:"isMenu"`
	SortOrder   int        `db:"sort_order" json:"sort"`
	RouteMethod *string    `db:"route_method" json:"routeMethod"`
	RoutePath   *string    `db:"route_path" json:"routePath"`
	Menu        *MenuMeta  `db:"menu_meta" json:"menu,omitempty"`
	Deleted     bool       `db:"deleted" json:"-"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// HasRoute reports whether the node carries a full route.
func (n *PermissionNode) HasRoute() bool {
	return n.RouteMethod != nil && *n.RouteMethod != "" && n.RoutePath != nil && *n.RoutePath != ""
}

// RouteKey returns "METHOD path" or an empty string for nodes without a route.
func (n *PermissionNode) RouteKey() string {
	if !n.HasRoute() {
		return ""
	}
	return *n.RouteMethod + " " + *n.RoutePath
}

// Clone returns a deep copy so cached nodes are never shared with callers.
func (n *PermissionNode) Clone() *PermissionNode {
	if n == nil {
		return nil
	}
	c := *n
	c.ParentID = clonePtr(n.ParentID)
	c.RouteMethod = clonePtr(n.RouteMethod)
	c.RoutePath = clonePtr(n.RoutePath)
	c.DeletedAt = clonePtr(n.DeletedAt)
	if n.Menu != nil {
		m := n.Menu.clone()
		c.Menu = &m
	}
	return &c
}

// MenuMeta holds the front-end presentation of a menu node.
type MenuMeta struct {
	Path       string `json:"path,omitempty"`
	Icon       string `json:"icon,omitempty"`
	Component  string `json:"component,omitempty"`
	Redirect   string `json:"redirect,omitempty"`
	ActiveMenu string `json:"activeMenu,omitempty"`
	Hidden     *bool  `json:"hidden,omitempty"`
	AlwaysShow *bool  `json:"alwaysShow,omitempty"`
	NoCache    *bool  `json:"noCache,omitempty"`
	Affix      *bool  `json:"affix,omitempty"`
	Breadcrumb *bool  `json:"breadcrumb,omitempty"`
}

func (m MenuMeta) clone() MenuMeta {
	m.Hidden = clonePtr(m.Hidden)
	m.AlwaysShow = clonePtr(m.AlwaysShow)
	m.NoCache = clonePtr(m.NoCache)
	m.Affix = clonePtr(m.Affix)
	m.Breadcrumb = clonePtr(m.Breadcrumb)
	return m
}

// Role is a named bundle of permissions.
type Role struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	SortOrder   int       `db:"sort_order" json:"sort"`
	Description string    `db:"description" json:"description"`
	IsSuperRole bool      `db:"is_super_role" json:"isSuperRole"`
	Deleted     bool      `db:"deleted" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// TreeNode is a catalog node with its ordered children.
type TreeNode struct {
	PermissionNode
	Children []*TreeNode `json:"children"`
}

// MenuItem is the navigation projection of a menu tree node, defaults applied.
type MenuItem struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Title      string      `json:"title"`
	Path       string      `json:"path"`
	Icon       string      `json:"icon"`
	Component  string      `json:"component"`
	Redirect   string      `json:"redirect"`
	ActiveMenu string      `json:"activeMenu"`
	Hidden     bool        `json:"hidden"`
	AlwaysShow bool        `json:"alwaysShow"`
	NoCache    bool        `json:"noCache"`
	Affix      bool        `json:"affix"`
	Breadcrumb bool        `json:"breadcrumb"`
	Children   []*MenuItem `json:"children"`
}

// Decision is the outcome of an authorization check.
type Decision string

const (
	Allow Decision = "ALLOW"
	Deny  Decision = "DENY"
)

// Reasons attached to a Result.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonUnknownRole     = "unknown_role"
	ReasonSuperRole       = "super_role"
	ReasonPublicRoute     = "public_route"
	ReasonUnmatchedAllow  = "unmatched_allow"
	ReasonUnmatchedDeny   = "unmatched_deny"
	ReasonGranted         = "granted"
	ReasonNotGranted      = "not_granted"
)

// Result explains a Decision. Node is the matched catalog node, if any.
type Result struct {
	Decision Decision
	Reason   string
	Node     *PermissionNode
}

// Allowed reports whether the decision is ALLOW.
func (r Result) Allowed() bool {
	return r.Decision == Allow
}

// Assignment is the permission set stored for a role after an edit.
type Assignment struct {
	RoleID    int64   `json:"roleId"`
	Requested []int64 `json:"requested"`
	Granted   []int64 `json:"granted"`
}

// Page selects a window of a listing. Zero values mean the first page of DefaultPageSize.
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Normalize clamps page and limit into their accepted ranges.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// PermissionFilter narrows a catalog listing.
type PermissionFilter struct {
	Search string
	IsMenu *bool
	Page
}

// CatalogStats summarizes the live catalog.
type CatalogStats struct {
	Total   int64 `db:"total" json:"total"`
	Menu    int64 `db:"menu" json:"menu"`
	Action  int64 `db:"action" json:"action"`
	Deleted int64 `db:"deleted" json:"deleted"`
}

// Route is an HTTP route registered by the server, as fed to Sync.
type Route struct {
	Method string
	Path   string
}

// SyncReport summarizes a catalog synchronization run.
type SyncReport struct {
	Inserted []string `json:"inserted"`
	Updated  []string `json:"updated"`
	Skipped  int      `json:"skipped"`
}

// CreatePermissionInput carries the fields of a new catalog node.
type CreatePermissionInput struct {
	ParentID    *int64
	Name        string
	Description string
	IsMenu      bool
	SortOrder   int
	RouteMethod string
	RoutePath   string
	Menu        *MenuMeta
}

// UpdatePermissionInput carries a partial update; nil fields are left unchanged.
// ClearParent moves the node to the root.
type UpdatePermissionInput struct {
	ParentID    *int64
	ClearParent bool
	Name        *string
	Description *string
	IsMenu      *bool
	SortOrder   *int
	RouteMethod *string
	RoutePath   *string
	Menu        *MenuMeta
}

// RoleInput carries the editable fields of a role. IsSuperRole is read by
// Create only.
type RoleInput struct {
	Name        string
	SortOrder   int
	Description string
	IsSuperRole bool
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func normalizeMethod(m string) string {
	return strings.ToUpper(strings.TrimSpace(m))
}
