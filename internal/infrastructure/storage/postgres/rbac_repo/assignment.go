package rbac_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"backoffice/internal/domain/rbac"
	"backoffice/internal/infrastructure/storage/postgres"
)

var assignmentColumns = []string{"role_id", "permission_id"}

// AssignmentRepo implements rbac.AssignmentRepository over role_permissions.
type AssignmentRepo struct {
	txm *postgres.TxManager
}

// NewAssignmentRepo creates an assignment repository.
func NewAssignmentRepo(txm *postgres.TxManager) *AssignmentRepo {
	return &AssignmentRepo{txm: txm}
}

func hasQuery(roleID, permissionID int64) squirrel.SelectBuilder {
	return exists(builder().Select("1").From(rolePermissionsTable).
		Where(squirrel.Eq{"role_id": roleID, "permission_id": permissionID}))
}

// Has reports whether the role holds the permission.
func (r *AssignmentRepo) Has(ctx context.Context, roleID, permissionID int64) (bool, error) {
	sql, args, err := hasQuery(roleID, permissionID).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var found bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&found); err != nil {
		return false, postgres.WrapError("check role permission", err)
	}
	return found, nil
}

// ListPermissionIDs returns the permission IDs held by a role in ascending order.
func (r *AssignmentRepo) ListPermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	sql, args, err := builder().Select("permission_id").From(rolePermissionsTable).
		Where(squirrel.Eq{"role_id": roleID}).
		OrderBy("permission_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []int64
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, postgres.WrapError("list role permissions", err)
	}
	return ids, nil
}

// Replace deletes the role's links and copies ids in. It must run inside a transaction.
func (r *AssignmentRepo) Replace(ctx context.Context, roleID int64, ids []int64) error {
	if err := r.DetachRole(ctx, roleID); err != nil {
		return err
	}

	rows := make([][]any, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []any{roleID, id})
	}
	if _, err := r.txm.CopyRows(ctx, rolePermissionsTable, assignmentColumns, rows); err != nil {
		return postgres.WrapError("copy role permissions", err)
	}
	return nil
}

// DetachPermission removes a permission from every role and returns how many links went.
func (r *AssignmentRepo) DetachPermission(ctx context.Context, permissionID int64) (int64, error) {
	sql, args, err := builder().Delete(rolePermissionsTable).
		Where(squirrel.Eq{"permission_id": permissionID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.WrapError("detach permission", err)
	}
	return tag.RowsAffected(), nil
}

// DetachRole removes every permission link of a role.
func (r *AssignmentRepo) DetachRole(ctx context.Context, roleID int64) error {
	sql, args, err := builder().Delete(rolePermissionsTable).
		Where(squirrel.Eq{"role_id": roleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.WrapError("detach role", err)
	}
	return nil
}

var _ rbac.AssignmentRepository = (*AssignmentRepo)(nil)
