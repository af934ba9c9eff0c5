package rbac

import (
	"context"
	"fmt"
	"slices"

	appctx "backoffice/internal/core/context"
)

// BuildTree links nodes into a forest rooted at rootParentID (nil selects
// parentless nodes). Siblings are ordered by (SortOrder, ID). Nodes whose parent
// is not in the input are left out, and every node appears at most once.
func BuildTree(nodes []PermissionNode, rootParentID *int64) []*TreeNode {
	const rootKey int64 = 0

	children := make(map[int64][]int, len(nodes))
	seen := make(map[int64]struct{}, len(nodes))
	for i := range nodes {
		if _, dup := seen[nodes[i].ID]; dup {
			continue
		}
		seen[nodes[i].ID] = struct{}{}
		parent := rootKey
		if nodes[i].ParentID != nil {
			parent = *nodes[i].ParentID
		}
		children[parent] = append(children[parent], i)
	}
	for _, idx := range children {
		slices.SortFunc(idx, func(a, b int) int {
			na, nb := &nodes[a], &nodes[b]
			if na.SortOrder != nb.SortOrder {
				return na.SortOrder - nb.SortOrder
			}
			switch {
			case na.ID < nb.ID:
				return -1
			case na.ID > nb.ID:
				return 1
			}
			return 0
		})
	}

	visited := make(map[int64]struct{}, len(nodes))
	var build func(parent int64) []*TreeNode
	build = func(parent int64) []*TreeNode {
		out := make([]*TreeNode, 0, len(children[parent]))
		for _, i := range children[parent] {
			n := nodes[i]
			if _, ok := visited[n.ID]; ok {
				continue
			}
			visited[n.ID] = struct{}{}
			out = append(out, &TreeNode{PermissionNode: n, Children: build(n.ID)})
		}
		return out
	}

	root := rootKey
	if rootParentID != nil {
		root = *rootParentID
		// the root itself must not be re-entered through a cycle
		visited[root] = struct{}{}
	}
	return build(root)
}

// Flatten lists the tree in pre-order.
func Flatten(tree []*TreeNode) []PermissionNode {
	var out []PermissionNode
	var walk func([]*TreeNode)
	walk = func(level []*TreeNode) {
		for _, t := range level {
			out = append(out, t.PermissionNode)
			walk(t.Children)
		}
	}
	walk(tree)
	return out
}

// ToMenu projects a tree into navigation items.
func ToMenu(tree []*TreeNode) []*MenuItem {
	out := make([]*MenuItem, 0, len(tree))
	for _, t := range tree {
		out = append(out, toMenuItem(t))
	}
	return out
}

func toMenuItem(t *TreeNode) *MenuItem {
	item := &MenuItem{
		ID:         t.ID,
		Name:       t.Name,
		Title:      t.Description,
		Icon:       DefaultMenuIcon,
		AlwaysShow: true,
		Breadcrumb: true,
		Children:   ToMenu(t.Children),
	}
	if item.Title == "" {
		item.Title = t.Name
	}
	if t.RoutePath != nil {
		item.Path = *t.RoutePath
	}
	if m := t.Menu; m != nil {
		if m.Path != "" {
			item.Path = m.Path
		}
		if m.Icon != "" {
			item.Icon = m.Icon
		}
		item.Component = m.Component
		item.Redirect = m.Redirect
		item.ActiveMenu = m.ActiveMenu
		item.Hidden = boolOr(m.Hidden, false)
		item.AlwaysShow = boolOr(m.AlwaysShow, true)
		item.NoCache = boolOr(m.NoCache, false)
		item.Affix = boolOr(m.Affix, false)
		item.Breadcrumb = boolOr(m.Breadcrumb, true)
	}
	return item
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// TreeService builds the trees served to the admin UI.
type TreeService struct {
	catalog     CatalogRepository
	roles       RoleRepository
	assignments AssignmentRepository
}

// NewTreeService creates a TreeService.
func NewTreeService(catalog CatalogRepository, roles RoleRepository, assignments AssignmentRepository) *TreeService {
	return &TreeService{catalog: catalog, roles: roles, assignments: assignments}
}

// FullTree returns every live node.
func (s *TreeService) FullTree(ctx context.Context) ([]*TreeNode, error) {
	nodes, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return BuildTree(nodes, nil), nil
}

// MenuTree returns the menu nodes only.
func (s *TreeService) MenuTree(ctx context.Context) ([]*TreeNode, error) {
	nodes, err := s.catalog.ListMenu(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu permissions: %w", err)
	}
	return BuildTree(nodes, nil), nil
}

// PrincipalMenu returns the navigation visible to principal.
// The super role sees the whole menu.
func (s *TreeService) PrincipalMenu(ctx context.Context, principal *appctx.Principal) ([]*MenuItem, error) {
	if principal == nil {
		return []*MenuItem{}, nil
	}
	role, err := s.roles.Get(ctx, principal.RoleID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.catalog.ListMenu(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu permissions: %w", err)
	}
	if !role.IsSuperRole {
		ids, err := s.assignments.ListPermissionIDs(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("list role permissions: %w", err)
		}
		nodes = keepIDs(nodes, ids)
	}
	return ToMenu(BuildTree(nodes, nil)), nil
}

// RoleTree returns the tree of nodes assigned to a role.
func (s *TreeService) RoleTree(ctx context.Context, roleID int64) ([]*TreeNode, error) {
	if _, err := s.roles.Get(ctx, roleID); err != nil {
		return nil, err
	}
	ids, err := s.assignments.ListPermissionIDs(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	if len(ids) == 0 {
		return []*TreeNode{}, nil
	}
	nodes, err := s.catalog.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	return BuildTree(nodes, nil), nil
}

func keepIDs(nodes []PermissionNode, ids []int64) []PermissionNode {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	out := nodes[:0:0]
	for _, n := range nodes {
		if _, ok := set[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}
