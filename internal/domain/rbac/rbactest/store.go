// Package rbactest provides an in-memory store for the rbac repositories.
package rbactest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"backoffice/internal/core/apperror"
	"backoffice/internal/domain/rbac"
)

// Store keeps catalog nodes, roles, grants and admin role links in memory.
// Set Err to make every repository call fail with it.
type Store struct {
	mu         sync.Mutex
	nodes      map[int64]*rbac.PermissionNode
	roles      map[int64]*rbac.Role
	grants     map[int64]map[int64]struct{}
	adminRoles map[int64]int64
	nextNode   int64
	nextRole   int64
	nextAdmin  int64

	Err error

	// FindCalls counts FindByRoute lookups.
	FindCalls atomic.Int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		nodes:      make(map[int64]*rbac.PermissionNode),
		roles:      make(map[int64]*rbac.Role),
		grants:     make(map[int64]map[int64]struct{}),
		adminRoles: make(map[int64]int64),
	}
}

// Catalog returns the catalog repository view.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s} }

// Roles returns the role repository view.
func (s *Store) Roles() *RoleRepo { return &RoleRepo{s} }

// Assignments returns the assignment repository view.
func (s *Store) Assignments() *AssignmentRepo { return &AssignmentRepo{s} }

// Admins returns the admin counter view.
func (s *Store) Admins() *AdminRepo { return &AdminRepo{s} }

// AddNode inserts n as given. A zero ID is assigned.
func (s *Store) AddNode(n rbac.PermissionNode) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == 0 {
		s.nextNode++
		n.ID = s.nextNode
	} else if n.ID > s.nextNode {
		s.nextNode = n.ID
	}
	s.nodes[n.ID] = n.Clone()
	return n.ID
}

// AddRole inserts r. A zero ID is assigned.
func (s *Store) AddRole(r rbac.Role) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.nextRole++
		r.ID = s.nextRole
	} else if r.ID > s.nextRole {
		s.nextRole = r.ID
	}
	s.roles[r.ID] = &r
	return r.ID
}

// Grant links roleID to ids without any validation.
func (s *Store) Grant(roleID int64, ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.grants[roleID]
	if set == nil {
		set = make(map[int64]struct{})
		s.grants[roleID] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// AddAdmin registers an administrator using roleID and returns its id.
func (s *Store) AddAdmin(roleID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAdmin++
	s.adminRoles[s.nextAdmin] = roleID
	return s.nextAdmin
}

// Granted returns the sorted permission ids of roleID.
func (s *Store) Granted(roleID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grantedLocked(roleID)
}

func (s *Store) grantedLocked(roleID int64) []int64 {
	out := make([]int64, 0, len(s.grants[roleID]))
	for id := range s.grants[roleID] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Node returns a copy of a node regardless of its deleted flag.
func (s *Store) Node(id int64) *rbac.PermissionNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodes[id].Clone()
}

func (s *Store) sortedNodes(keep func(*rbac.PermissionNode) bool) []rbac.PermissionNode {
	out := make([]rbac.PermissionNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		if keep(n) {
			out = append(out, *n.Clone())
		}
	}
	slices.SortFunc(out, func(a, b rbac.PermissionNode) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		return int(a.ID - b.ID)
	})
	return out
}

func page[T any](items []T, p rbac.Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := min(start+p.Limit, len(items))
	return items[start:end]
}

// CatalogRepo implements rbac.CatalogRepository.
type CatalogRepo struct{ s *Store }

func (r *CatalogRepo) Get(_ context.Context, id int64) (*rbac.PermissionNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	n, ok := r.s.nodes[id]
	if !ok || n.Deleted {
		return nil, apperror.NewNotFound("permission", id)
	}
	return n.Clone(), nil
}

func (r *CatalogRepo) GetAny(_ context.Context, id int64) (*rbac.PermissionNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	n, ok := r.s.nodes[id]
	if !ok {
		return nil, apperror.NewNotFound("permission", id)
	}
	return n.Clone(), nil
}

func (r *CatalogRepo) FindByRoute(_ context.Context, method, path string) (*rbac.PermissionNode, error) {
	r.s.FindCalls.Add(1)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	for _, n := range r.s.nodes {
		if !n.Deleted && n.HasRoute() && *n.RouteMethod == method && *n.RoutePath == path {
			return n.Clone(), nil
		}
	}
	return nil, nil
}

func (r *CatalogRepo) ListAll(_ context.Context) ([]rbac.PermissionNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.s.sortedNodes(func(n *rbac.PermissionNode) bool { return !n.Deleted }), nil
}

func (r *CatalogRepo) ListMenu(_ context.Context) ([]rbac.PermissionNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.s.sortedNodes(func(n *rbac.PermissionNode) bool { return !n.Deleted && n.IsMenu }), nil
}

func (r *CatalogRepo) ListByIDs(_ context.Context, ids []int64) ([]rbac.PermissionNode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.s.sortedNodes(func(n *rbac.PermissionNode) bool {
		return !n.Deleted && slices.Contains(ids, n.ID)
	}), nil
}

func (r *CatalogRepo) List(_ context.Context, f rbac.PermissionFilter) ([]rbac.PermissionNode, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, 0, r.s.Err
	}
	all := r.s.sortedNodes(func(n *rbac.PermissionNode) bool {
		if n.Deleted {
			return false
		}
		if f.IsMenu != nil && n.IsMenu != *f.IsMenu {
			return false
		}
		return f.Search == "" || strings.Contains(n.Name, f.Search) || strings.Contains(n.Description, f.Search)
	})
	return page(all, f.Page), int64(len(all)), nil
}

func (r *CatalogRepo) ListDeleted(_ context.Context, p rbac.Page) ([]rbac.PermissionNode, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, 0, r.s.Err
	}
	all := r.s.sortedNodes(func(n *rbac.PermissionNode) bool { return n.Deleted })
	return page(all, p), int64(len(all)), nil
}

func (r *CatalogRepo) ExistsByName(_ context.Context, name string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	for _, n := range r.s.nodes {
		if !n.Deleted && n.ID != excludeID && n.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *CatalogRepo) ExistsByRoute(_ context.Context, method, path string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	for _, n := range r.s.nodes {
		if !n.Deleted && n.ID != excludeID && n.HasRoute() && *n.RouteMethod == method && *n.RoutePath == path {
			return true, nil
		}
	}
	return false, nil
}

func (r *CatalogRepo) HasChildren(_ context.Context, id int64, includeDeleted bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	for _, n := range r.s.nodes {
		if n.ParentID != nil && *n.ParentID == id && (includeDeleted || !n.Deleted) {
			return true, nil
		}
	}
	return false, nil
}

func (r *CatalogRepo) Create(_ context.Context, node *rbac.PermissionNode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	r.s.nextNode++
	node.ID = r.s.nextNode
	node.CreatedAt = time.Now().UTC()
	node.UpdatedAt = node.CreatedAt
	r.s.nodes[node.ID] = node.Clone()
	return nil
}

func (r *CatalogRepo) Update(_ context.Context, node *rbac.PermissionNode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.nodes[node.ID]; !ok {
		return apperror.NewNotFound("permission", node.ID)
	}
	node.UpdatedAt = time.Now().UTC()
	r.s.nodes[node.ID] = node.Clone()
	return nil
}

func (r *CatalogRepo) SoftDelete(_ context.Context, id int64) error {
	return r.s.mutateNode(id, func(n *rbac.PermissionNode) {
		now := time.Now().UTC()
		n.Deleted = true
		n.DeletedAt = &now
	})
}

func (r *CatalogRepo) Restore(_ context.Context, id int64) error {
	return r.s.mutateNode(id, func(n *rbac.PermissionNode) {
		n.Deleted = false
		n.DeletedAt = nil
	})
}

func (r *CatalogRepo) Purge(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	delete(r.s.nodes, id)
	return nil
}

func (r *CatalogRepo) Stats(_ context.Context) (rbac.CatalogStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return rbac.CatalogStats{}, r.s.Err
	}
	var st rbac.CatalogStats
	for _, n := range r.s.nodes {
		switch {
		case n.Deleted:
			st.Deleted++
		case n.IsMenu:
			st.Total++
			st.Menu++
		default:
			st.Total++
			st.Action++
		}
	}
	return st, nil
}

func (s *Store) mutateNode(id int64, fn func(*rbac.PermissionNode)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	n, ok := s.nodes[id]
	if !ok {
		return apperror.NewNotFound("permission", id)
	}
	fn(n)
	return nil
}

// RoleRepo implements rbac.RoleRepository.
type RoleRepo struct{ s *Store }

func (r *RoleRepo) Get(_ context.Context, id int64) (*rbac.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	role, ok := r.s.roles[id]
	if !ok || role.Deleted {
		return nil, apperror.NewNotFound("role", id)
	}
	c := *role
	return &c, nil
}

func (r *RoleRepo) GetForUpdate(ctx context.Context, id int64) (*rbac.Role, error) {
	return r.Get(ctx, id)
}

func (r *RoleRepo) List(_ context.Context) ([]rbac.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	out := make([]rbac.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		if !role.Deleted {
			out = append(out, *role)
		}
	}
	slices.SortFunc(out, func(a, b rbac.Role) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *RoleRepo) ExistsByName(_ context.Context, name string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	for _, role := range r.s.roles {
		if !role.Deleted && role.ID != excludeID && role.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *RoleRepo) Create(_ context.Context, role *rbac.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	r.s.nextRole++
	role.ID = r.s.nextRole
	role.CreatedAt = time.Now().UTC()
	role.UpdatedAt = role.CreatedAt
	c := *role
	r.s.roles[role.ID] = &c
	return nil
}

func (r *RoleRepo) Update(_ context.Context, role *rbac.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.roles[role.ID]; !ok {
		return apperror.NewNotFound("role", role.ID)
	}
	c := *role
	r.s.roles[role.ID] = &c
	return nil
}

func (r *RoleRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	delete(r.s.roles, id)
	return nil
}

// AssignmentRepo implements rbac.AssignmentRepository.
type AssignmentRepo struct{ s *Store }

func (r *AssignmentRepo) Has(_ context.Context, roleID, permissionID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	_, ok := r.s.grants[roleID][permissionID]
	return ok, nil
}

func (r *AssignmentRepo) ListPermissionIDs(_ context.Context, roleID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	return r.s.grantedLocked(roleID), nil
}

func (r *AssignmentRepo) Replace(_ context.Context, roleID int64, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	r.s.grants[roleID] = set
	return nil
}

func (r *AssignmentRepo) DetachPermission(_ context.Context, permissionID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	var n int64
	for _, set := range r.s.grants {
		if _, ok := set[permissionID]; ok {
			delete(set, permissionID)
			n++
		}
	}
	return n, nil
}

func (r *AssignmentRepo) DetachRole(_ context.Context, roleID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	delete(r.s.grants, roleID)
	return nil
}

// AdminRepo implements rbac.AdminCounter.
type AdminRepo struct{ s *Store }

func (r *AdminRepo) CountByRole(_ context.Context, roleID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	var n int64
	for _, rid := range r.s.adminRoles {
		if rid == roleID {
			n++
		}
	}
	return n, nil
}

var (
	_ rbac.CatalogRepository    = (*CatalogRepo)(nil)
	_ rbac.RoleRepository       = (*RoleRepo)(nil)
	_ rbac.AssignmentRepository = (*AssignmentRepo)(nil)
	_ rbac.AdminCounter         = (*AdminRepo)(nil)
)
