package rbac

import (
	"context"
	"fmt"
	"slices"

	"backoffice/internal/core/apperror"
	"backoffice/internal/core/tx"
	"backoffice/internal/domain/audit"
	"backoffice/pkg/logger"
)

// Editor replaces the permission set of a role, keeping it upward-closed.
type Editor struct {
	catalog     CatalogRepository
	roles       RoleRepository
	assignments AssignmentRepository
	txManager   tx.Manager
	audit       *audit.Recorder
}

// NewEditor creates an Editor.
func NewEditor(
	catalog CatalogRepository,
	roles RoleRepository,
	assignments AssignmentRepository,
	txManager tx.Manager,
	recorder *audit.Recorder,
) *Editor {
	return &Editor{
		catalog:     catalog,
		roles:       roles,
		assignments: assignments,
		txManager:   txManager,
		audit:       recorder,
	}
}

// SetRolePermissions makes requested, plus every ancestor of each requested
// node, the complete permission set of roleID.
//
// The role must exist and every requested id must be a live menu node;
// otherwise nothing is written. The role row is locked for the duration of
// the replace, and the audit entry commits with it.
func (e *Editor) SetRolePermissions(ctx context.Context, roleID int64, requested []int64) (*Assignment, error) {
	requested = uniqueSorted(requested)
	var result *Assignment

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		role, err := e.roles.GetForUpdate(ctx, roleID)
		if err != nil {
			return err
		}

		nodes, err := e.catalog.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list permissions: %w", err)
		}
		if err := checkAssignable(nodes, requested); err != nil {
			return err
		}

		granted := UpwardClosure(nodes, requested)
		if err := e.assignments.Replace(ctx, role.ID, granted); err != nil {
			return fmt.Errorf("replace role permissions: %w", err)
		}

		result = &Assignment{RoleID: role.ID, Requested: requested, Granted: granted}
		return e.audit.Record(ctx, audit.Event{
			Action:      audit.ActionAssign,
			Module:      audit.ModuleRole,
			Description: fmt.Sprintf("set permissions of role %q", role.Name),
			Params:      result,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "role permissions replaced",
		"role_id", roleID,
		"requested", len(requested),
		"granted", len(result.Granted),
	)
	return result, nil
}

// checkAssignable rejects ids that are unknown, deleted or not menu nodes.
func checkAssignable(nodes []PermissionNode, ids []int64) error {
	menu := make(map[int64]bool, len(nodes))
	for i := range nodes {
		menu[nodes[i].ID] = nodes[i].IsMenu
	}
	var bad []int64
	for _, id := range ids {
		if isMenu, ok := menu[id]; !ok || !isMenu {
			bad = append(bad, id)
		}
	}
	if len(bad) > 0 {
		return apperror.NewInvalidArgument("permissions are not assignable menu nodes").
			WithDetail("ids", bad)
	}
	return nil
}

// UpwardClosure returns ids together with all of their ancestors among nodes,
// sorted. The walk stops at a missing parent or a node already visited.
func UpwardClosure(nodes []PermissionNode, ids []int64) []int64 {
	parents := make(map[int64]*int64, len(nodes))
	for i := range nodes {
		parents[nodes[i].ID] = nodes[i].ParentID
	}

	closed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		cur := id
		for {
			if _, done := closed[cur]; done {
				break
			}
			closed[cur] = struct{}{}
			parent, ok := parents[cur]
			if !ok || parent == nil {
				break
			}
			if _, known := parents[*parent]; !known {
				break
			}
			cur = *parent
		}
	}

	out := make([]int64, 0, len(closed))
	for id := range closed {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func uniqueSorted(ids []int64) []int64 {
	out := slices.Clone(ids)
	if out == nil {
		out = []int64{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
