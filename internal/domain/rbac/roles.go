package rbac

import (
	"context"
	"fmt"
	"strings"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/tx"
	"backoffice/internal/domain/audit"
)

// RoleService manages roles and reads their permission sets.
type RoleService struct {
	roles       RoleRepository
	assignments AssignmentRepository
	catalog     CatalogRepository
	admins      AdminCounter
	txManager   tx.Manager
	audit       *audit.Recorder
}

// NewRoleService creates a RoleService.
func NewRoleService(
	roles RoleRepository,
	assignments AssignmentRepository,
	catalog CatalogRepository,
	admins AdminCounter,
	txManager tx.Manager,
	recorder *audit.Recorder,
) *RoleService {
	return &RoleService{
		roles:       roles,
		assignments: assignments,
		catalog:     catalog,
		admins:      admins,
		txManager:   txManager,
		audit:       recorder,
	}
}

// List returns all live roles.
func (s *RoleService) List(ctx context.Context) ([]Role, error) {
	return s.roles.List(ctx)
}

// Get returns a live role.
func (s *RoleService) Get(ctx context.Context, id int64) (*Role, error) {
	return s.roles.Get(ctx, id)
}

// Create adds a role with a unique name.
func (s *RoleService) Create(ctx context.Context, in RoleInput) (*Role, error) {
	role := &Role{
		Name:        strings.TrimSpace(in.Name),
		SortOrder:   in.SortOrder,
		Description: strings.TrimSpace(in.Description),
		IsSuperRole: in.IsSuperRole,
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkName(ctx, role.Name, 0); err != nil {
			return err
		}
		if err := s.roles.Create(ctx, role); err != nil {
			return fmt.Errorf("create role: %w", err)
		}
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionCreate,
			Module:      audit.ModuleRole,
			Description: fmt.Sprintf("create role %q", role.Name),
			Params:      in,
		})
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// Update replaces the name, sort order and description of a role. The super
// flag is fixed at creation and is never changed here.
func (s *RoleService) Update(ctx context.Context, id int64, in RoleInput) (*Role, error) {
	var role *Role

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		role, err = s.roles.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		name := strings.TrimSpace(in.Name)
		if err := s.checkName(ctx, name, id); err != nil {
			return err
		}
		role.Name = name
		role.SortOrder = in.SortOrder
		role.Description = strings.TrimSpace(in.Description)
		if err := s.roles.Update(ctx, role); err != nil {
			return fmt.Errorf("update role %d: %w", id, err)
		}
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionUpdate,
			Module:      audit.ModuleRole,
			Description: fmt.Sprintf("update role %q", role.Name),
			Params:      map[string]any{"id": id, "role": in},
		})
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// Delete removes a role that is neither the super role nor in use.
func (s *RoleService) Delete(ctx context.Context, id int64) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		role, err := s.roles.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if role.IsSuperRole {
			return apperror.NewConflict("super role cannot be deleted").WithDetail("id", id)
		}
		n, err := s.admins.CountByRole(ctx, id)
		if err != nil {
			return fmt.Errorf("count role admins: %w", err)
		}
		if n > 0 {
			return apperror.NewConflict("该角色下还有管理员，无法删除").WithDetail("admins", n)
		}
		if err := s.assignments.DetachRole(ctx, id); err != nil {
			return fmt.Errorf("detach role %d: %w", id, err)
		}
		if err := s.roles.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete role %d: %w", id, err)
		}
		return s.audit.Record(ctx, audit.Event{
			Action:      audit.ActionDelete,
			Module:      audit.ModuleRole,
			Description: fmt.Sprintf("delete role %q", role.Name),
			Params:      map[string]any{"id": id},
		})
	})
}

// Rights returns the menu nodes assigned to a role, ordered as in the catalog.
func (s *RoleService) Rights(ctx context.Context, roleID int64) ([]PermissionNode, error) {
	if _, err := s.roles.Get(ctx, roleID); err != nil {
		return nil, err
	}
	ids, err := s.assignments.ListPermissionIDs(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	if len(ids) == 0 {
		return []PermissionNode{}, nil
	}
	nodes, err := s.catalog.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	out := make([]PermissionNode, 0, len(nodes))
	for _, n := range nodes {
		if n.IsMenu {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *RoleService) checkName(ctx context.Context, name string, excludeID int64) error {
	if name == "" {
		return apperror.NewValidation("role name is required")
	}
	taken, err := s.roles.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return fmt.Errorf("check role name: %w", err)
	}
	if taken {
		return apperror.NewDuplicate("role", "name", name)
	}
	return nil
}
