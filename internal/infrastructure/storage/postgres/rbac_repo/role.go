package rbac_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"backoffice/internal/core/apperror"
	"backoffice/internal/domain/rbac"
	"backoffice/internal/infrastructure/storage/postgres"
)

var roleManaged = []string{"id", "deleted", "created_at", "updated_at"}

// RoleRepo implements rbac.RoleRepository.
type RoleRepo struct {
	txm  *postgres.TxManager
	cols []string
}

// NewRoleRepo creates a role repository.
func NewRoleRepo(txm *postgres.TxManager) *RoleRepo {
	return &RoleRepo{
		txm:  txm,
		cols: postgres.Columns[rbac.Role](),
	}
}

func (r *RoleRepo) selectLive() squirrel.SelectBuilder {
	return builder().Select(r.cols...).From(rolesTable).Where(squirrel.Eq{"deleted": false})
}

func (r *RoleRepo) getQuery(id int64, lock bool) squirrel.SelectBuilder {
	q := r.selectLive().Where(squirrel.Eq{"id": id}).Limit(1)
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *RoleRepo) get(ctx context.Context, id int64, lock bool) (*rbac.Role, error) {
	sql, args, err := r.getQuery(id, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var role rbac.Role
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &role, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("role", id)
		}
		return nil, postgres.WrapError("get role", err)
	}
	return &role, nil
}

// Get retrieves a role by ID.
func (r *RoleRepo) Get(ctx context.Context, id int64) (*rbac.Role, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate retrieves a role and locks its row.
func (r *RoleRepo) GetForUpdate(ctx context.Context, id int64) (*rbac.Role, error) {
	return r.get(ctx, id, true)
}

// List returns all roles by sort order.
func (r *RoleRepo) List(ctx context.Context) ([]rbac.Role, error) {
	sql, args, err := r.selectLive().OrderBy("sort_order", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var roles []rbac.Role
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &roles, sql, args...); err != nil {
		return nil, postgres.WrapError("list roles", err)
	}
	return roles, nil
}

// ExistsByName checks for another role with name.
func (r *RoleRepo) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	sql, args, err := exists(builder().Select("1").From(rolesTable).
		Where(squirrel.Eq{"name": name, "deleted": false}).
		Where(squirrel.NotEq{"id": excludeID})).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var found bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&found); err != nil {
		return false, postgres.WrapError("check role name", err)
	}
	return found, nil
}

// Create inserts role and fills its generated fields.
func (r *RoleRepo) Create(ctx context.Context, role *rbac.Role) error {
	sql, args, err := builder().
		Insert(rolesTable).
		SetMap(postgres.ToMap(role, roleManaged...)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return postgres.WrapError("insert role", err)
	}
	return nil
}

// Update rewrites the editable columns of a role.
func (r *RoleRepo) Update(ctx context.Context, role *rbac.Role) error {
	sql, args, err := builder().
		Update(rolesTable).
		SetMap(postgres.ToMap(role, roleManaged...)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": role.ID, "deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.WrapError("update role", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("role", role.ID)
	}
	return nil
}

// Delete removes a role.
func (r *RoleRepo) Delete(ctx context.Context, id int64) error {
	sql, args, err := builder().Delete(rolesTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.WrapError("delete role", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("role", id)
	}
	return nil
}

var _ rbac.RoleRepository = (*RoleRepo)(nil)
