package rbac

import (
	"context"
	"fmt"
	"strings"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/tx"
	"backoffice/internal/domain/audit"
	"backoffice/pkg/logger"
)

var allowedMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "PATCH": {}, "DELETE": {}, "HEAD": {}, "OPTIONS": {},
}

// CatalogService manages the permission catalog.
// Every mutation is audited in its own transaction and drops cached route resolutions.
type CatalogService struct {
	repo        CatalogRepository
	assignments AssignmentRepository
	txManager   tx.Manager
	audit       *audit.Recorder
	invalidator Invalidator
	broadcaster Broadcaster
}

// NewCatalogService creates a CatalogService. invalidator may be nil.
func NewCatalogService(
	repo CatalogRepository,
	assignments AssignmentRepository,
	txManager tx.Manager,
	recorder *audit.Recorder,
	invalidator Invalidator,
) *CatalogService {
	return &CatalogService{
		repo:        repo,
		assignments: assignments,
		txManager:   txManager,
		audit:       recorder,
		invalidator: invalidator,
	}
}

// SetBroadcaster installs the cross-instance notifier used after mutations.
func (s *CatalogService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Get returns a live node.
func (s *CatalogService) Get(ctx context.Context, id int64) (*PermissionNode, error) {
	return s.repo.Get(ctx, id)
}

// ListAll returns every live node.
func (s *CatalogService) ListAll(ctx context.Context) ([]PermissionNode, error) {
	return s.repo.ListAll(ctx)
}

// ListMenuOnly returns the live menu nodes.
func (s *CatalogService) ListMenuOnly(ctx context.Context) ([]PermissionNode, error) {
	return s.repo.ListMenu(ctx)
}

// List returns one page of live nodes and the total match count.
func (s *CatalogService) List(ctx context.Context, filter PermissionFilter) ([]PermissionNode, int64, error) {
	filter.Page = filter.Page.Normalize()
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, filter)
}

// ListDeleted returns one page of soft-deleted nodes.
func (s *CatalogService) ListDeleted(ctx context.Context, page Page) ([]PermissionNode, int64, error) {
	return s.repo.ListDeleted(ctx, page.Normalize())
}

// Stats counts live and deleted nodes.
func (s *CatalogService) Stats(ctx context.Context) (CatalogStats, error) {
	return s.repo.Stats(ctx)
}

// Create adds a node to the catalog.
func (s *CatalogService) Create(ctx context.Context, in CreatePermissionInput) (*PermissionNode, error) {
	node := &PermissionNode{
		ParentID:    in.ParentID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		IsMenu:      in.IsMenu,
		SortOrder:   in.SortOrder,
		RouteMethod: strPtr(normalizeMethod(in.RouteMethod)),
		RoutePath:   canonicalPtr(in.RoutePath),
		Menu:        in.Menu,
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.validate(ctx, node); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, node); err != nil {
			return fmt.Errorf("create permission: %w", err)
		}
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionCreate,
			Module:      audit.ModulePermission,
			Description: fmt.Sprintf("create permission %q", node.Name),
			Params:      nodeState(node),
		})
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx)
	return node, nil
}

// Update applies a partial update to a live node.
func (s *CatalogService) Update(ctx context.Context, id int64, in UpdatePermissionInput) (*PermissionNode, error) {
	var node *PermissionNode

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		before := nodeState(current)
		node = current.Clone()
		applyUpdate(node, in)

		if err := s.validate(ctx, node); err != nil {
			return err
		}
		if node.ParentID != nil && !ptrEqual(node.ParentID, current.ParentID) {
			if err := s.checkNotDescendant(ctx, node.ID, *node.ParentID); err != nil {
				return err
			}
		}
		if err := s.repo.Update(ctx, node); err != nil {
			return fmt.Errorf("update permission %d: %w", id, err)
		}
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionUpdate,
			Module:      audit.ModulePermission,
			Description: fmt.Sprintf("update permission %q", node.Name),
			Params:      map[string]any{"id": id, "changes": audit.Diff(before, nodeState(node))},
		})
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx)
	return node, nil
}

// SoftDelete marks a childless node deleted. Role links are kept.
func (s *CatalogService) SoftDelete(ctx context.Context, id int64) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		node, err := s.deletable(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.SoftDelete(ctx, id); err != nil {
			return fmt.Errorf("soft delete permission %d: %w", id, err)
		}
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionDelete,
			Module:      audit.ModulePermission,
			Description: fmt.Sprintf("delete permission %q", node.Name),
			Params:      map[string]any{"id": id},
		})
	})
	if err != nil {
		return err
	}

	s.changed(ctx)
	return nil
}

// Retire soft-deletes a childless node and removes it from every role.
func (s *CatalogService) Retire(ctx context.Context, id int64) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		node, err := s.deletable(ctx, id)
		if err != nil {
			return err
		}
		return s.retire(ctx, node)
	})
	if err != nil {
		return err
	}

	s.changed(ctx)
	return nil
}

// BatchRetire retires each id that exists and has no live children, and
// returns how many were retired. Other ids are skipped.
func (s *CatalogService) BatchRetire(ctx context.Context, ids []int64) (int, error) {
	ids = uniqueSorted(ids)
	if len(ids) == 0 {
		return 0, apperror.NewValidation("ids must not be empty")
	}

	retired := 0
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// children first, so a parent listed with all its children can go too
		for i := len(ids) - 1; i >= 0; i-- {
			node, err := s.deletable(ctx, ids[i])
			if err != nil {
				if apperror.IsNotFound(err) || apperror.IsConflict(err) {
					continue
				}
				return err
			}
			if err := s.retire(ctx, node); err != nil {
				return err
			}
			retired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if retired > 0 {
		s.changed(ctx)
	}
	return retired, nil
}

// Restore brings a soft-deleted node back. Its parent must be live and its
// name and route must still be free.
func (s *CatalogService) Restore(ctx context.Context, id int64) (*PermissionNode, error) {
	var node *PermissionNode

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		node, err = s.repo.GetAny(ctx, id)
		if err != nil {
			return err
		}
		if !node.Deleted {
			return apperror.NewConflict("permission is not deleted").WithDetail("id", id)
		}
		if err := s.validate(ctx, node); err != nil {
			return err
		}
		if err := s.repo.Restore(ctx, id); err != nil {
			return fmt.Errorf("restore permission %d: %w", id, err)
		}
		node.Deleted = false
		node.DeletedAt = nil
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionRestore,
			Module:      audit.ModulePermission,
			Description: fmt.Sprintf("restore permission %q", node.Name),
			Params:      map[string]any{"id": id},
		})
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx)
	return node, nil
}

// Purge physically removes a soft-deleted node that has no children at all.
func (s *CatalogService) Purge(ctx context.Context, id int64) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		node, err := s.repo.GetAny(ctx, id)
		if err != nil {
			return err
		}
		if !node.Deleted {
			return apperror.NewConflict("only deleted permissions can be purged").WithDetail("id", id)
		}
		hasChildren, err := s.repo.HasChildren(ctx, id, true)
		if err != nil {
			return fmt.Errorf("check children of %d: %w", id, err)
		}
		if hasChildren {
			return apperror.NewConflict("permission has children").WithDetail("id", id)
		}
		if _, err := s.assignments.DetachPermission(ctx, id); err != nil {
			return fmt.Errorf("detach permission %d: %w", id, err)
		}
		if err := s.repo.Purge(ctx, id); err != nil {
			return fmt.Errorf("purge permission %d: %w", id, err)
		}
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionPurge,
			Module:      audit.ModulePermission,
			Description: fmt.Sprintf("purge permission %q", node.Name),
			Params:      map[string]any{"id": id},
		})
	})
	if err != nil {
		return err
	}

	s.changed(ctx)
	return nil
}

// deletable loads a live node and rejects it when it still has live children.
func (s *CatalogService) deletable(ctx context.Context, id int64) (*PermissionNode, error) {
	node, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	hasChildren, err := s.repo.HasChildren(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("check children of %d: %w", id, err)
	}
	if hasChildren {
		return nil, apperror.NewConflict("permission has children").WithDetail("id", id)
	}
	return node, nil
}

func (s *CatalogService) retire(ctx context.Context, node *PermissionNode) error {
	if err := s.repo.SoftDelete(ctx, node.ID); err != nil {
		return fmt.Errorf("soft delete permission %d: %w", node.ID, err)
	}
	detached, err := s.assignments.DetachPermission(ctx, node.ID)
	if err != nil {
		return fmt.Errorf("detach permission %d: %w", node.ID, err)
	}
	return s.audit.Record(ctx, audit.Event{
		Action:      audit.ActionDelete,
		Module:      audit.ModulePermission,
		Description: fmt.Sprintf("delete permission %q", node.Name),
		Params:      map[string]any{"id": node.ID, "detachedRoles": detached},
	})
}

// validate checks the invariants a live node must satisfy against the rest of the catalog.
func (s *CatalogService) validate(ctx context.Context, node *PermissionNode) error {
	if node.Name == "" {
		return apperror.NewValidation("name is required")
	}
	if (node.RouteMethod == nil) != (node.RoutePath == nil) {
		return apperror.NewValidation("route method and route path must be set together")
	}
	if node.RouteMethod != nil {
		if _, ok := allowedMethods[*node.RouteMethod]; !ok {
			return apperror.NewValidation("unsupported route method").WithDetail("method", *node.RouteMethod)
		}
	}
	if node.Menu != nil && !node.IsMenu {
		return apperror.NewValidation("menu metadata is only allowed on menu nodes")
	}

	if node.ParentID != nil {
		if node.ID != 0 && *node.ParentID == node.ID {
			return apperror.NewInvalidArgument("permission cannot be its own parent")
		}
		if _, err := s.repo.Get(ctx, *node.ParentID); err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewInvalidArgument("parent permission not found").
					WithDetail("parentId", *node.ParentID)
			}
			return err
		}
	}

	taken, err := s.repo.ExistsByName(ctx, node.Name, node.ID)
	if err != nil {
		return fmt.Errorf("check permission name: %w", err)
	}
	if taken {
		return apperror.NewDuplicate("permission", "name", node.Name)
	}

	if node.HasRoute() {
		taken, err := s.repo.ExistsByRoute(ctx, *node.RouteMethod, *node.RoutePath, node.ID)
		if err != nil {
			return fmt.Errorf("check permission route: %w", err)
		}
		if taken {
			return apperror.NewDuplicate("permission", "route", node.RouteKey())
		}
	}
	return nil
}

// checkNotDescendant rejects moving id under parentID when parentID lies in id's subtree.
func (s *CatalogService) checkNotDescendant(ctx context.Context, id, parentID int64) error {
	nodes, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list permissions: %w", err)
	}
	parents := make(map[int64]*int64, len(nodes))
	for i := range nodes {
		parents[nodes[i].ID] = nodes[i].ParentID
	}

	seen := make(map[int64]struct{})
	for cur := parentID; ; {
		if cur == id {
			return apperror.NewInvalidArgument("permission cannot be moved under its own descendant").
				WithDetail("parentId", parentID)
		}
		if _, loop := seen[cur]; loop {
			return nil
		}
		seen[cur] = struct{}{}
		p := parents[cur]
		if p == nil {
			return nil
		}
		cur = *p
	}
}

// changed drops local route resolutions and tells other instances to do the same.
func (s *CatalogService) changed(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.InvalidateAll(ctx)
	}
	if s.broadcaster != nil {
		if err := s.broadcaster.Publish(ctx); err != nil {
			logger.Warn(ctx, "catalog change broadcast failed", "error", err)
		}
	}
}

func applyUpdate(node *PermissionNode, in UpdatePermissionInput) {
	if in.ClearParent {
		node.ParentID = nil
	} else if in.ParentID != nil {
		node.ParentID = clonePtr(in.ParentID)
	}
	if in.Name != nil {
		node.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		node.Description = strings.TrimSpace(*in.Description)
	}
	if in.SortOrder != nil {
		node.SortOrder = *in.SortOrder
	}
	if in.RouteMethod != nil {
		node.RouteMethod = strPtr(normalizeMethod(*in.RouteMethod))
	}
	if in.RoutePath != nil {
		node.RoutePath = canonicalPtr(*in.RoutePath)
	}
	if in.IsMenu != nil {
		node.IsMenu = *in.IsMenu
		if !node.IsMenu && in.Menu == nil {
			node.Menu = nil
		}
	}
	if in.Menu != nil {
		node.Menu = in.Menu
	}
}

func nodeState(n *PermissionNode) map[string]any {
	state := map[string]any{
		"name":        n.Name,
		"description": n.Description,
		"isMenu":      n.IsMenu,
		"sort":        n.SortOrder,
		"parentId":    nil,
		"route":       n.RouteKey(),
	}
	if n.ParentID != nil {
		state["parentId"] = *n.ParentID
	}
	if n.Menu != nil {
		state["menu"] = *n.Menu
	}
	return state
}

func canonicalPtr(path string) *string {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	c := CanonicalRoute(path)
	return &c
}

func ptrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
