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

// columns written by the application; the rest are managed by the repository.
var permissionManaged = []string{"id", "deleted", "deleted_at", "created_at", "updated_at"}

// PermissionRepo implements rbac.CatalogRepository.
type PermissionRepo struct {
	txm  *postgres.TxManager
	cols []string
}

// NewPermissionRepo creates a permission catalog repository.
func NewPermissionRepo(txm *postgres.TxManager) *PermissionRepo {
	return &PermissionRepo{
		txm:  txm,
		cols: postgres.Columns[rbac.PermissionNode](),
	}
}

func (r *PermissionRepo) selectAny() squirrel.SelectBuilder {
	return builder().Select(r.cols...).From(permissionsTable)
}

func (r *PermissionRepo) selectLive() squirrel.SelectBuilder {
	return r.selectAny().Where(squirrel.Eq{"deleted": false})
}

func (r *PermissionRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, id int64) (*rbac.PermissionNode, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var node rbac.PermissionNode
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &node, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("permission", id)
		}
		return nil, postgres.WrapError("get permission", err)
	}
	return &node, nil
}

func (r *PermissionRepo) selectMany(ctx context.Context, q squirrel.Sqlizer, op string) ([]rbac.PermissionNode, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var nodes []rbac.PermissionNode
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &nodes, sql, args...); err != nil {
		return nil, postgres.WrapError(op, err)
	}
	return nodes, nil
}

func (r *PermissionRepo) count(ctx context.Context, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var total int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, postgres.WrapError("count permissions", err)
	}
	return total, nil
}

func (r *PermissionRepo) scalarBool(ctx context.Context, q squirrel.SelectBuilder, op string) (bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var ok bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, postgres.WrapError(op, err)
	}
	return ok, nil
}

// Get retrieves a live node by ID.
func (r *PermissionRepo) Get(ctx context.Context, id int64) (*rbac.PermissionNode, error) {
	return r.getOne(ctx, r.selectLive().Where(squirrel.Eq{"id": id}), id)
}

// GetAny retrieves a node by ID including soft-deleted ones.
func (r *PermissionRepo) GetAny(ctx context.Context, id int64) (*rbac.PermissionNode, error) {
	return r.getOne(ctx, r.selectAny().Where(squirrel.Eq{"id": id}), id)
}

func (r *PermissionRepo) findByRouteQuery(method, path string) squirrel.SelectBuilder {
	return r.selectLive().
		Where(squirrel.Eq{"route_method": method, "route_path": path}).
		OrderBy("id").
		Limit(1)
}

// FindByRoute returns the live node carrying method and path, or nil.
func (r *PermissionRepo) FindByRoute(ctx context.Context, method, path string) (*rbac.PermissionNode, error) {
	sql, args, err := r.findByRouteQuery(method, path).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var node rbac.PermissionNode
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &node, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, postgres.WrapError("find permission by route", err)
	}
	return &node, nil
}

// ListAll returns every live node ordered by sort order.
func (r *PermissionRepo) ListAll(ctx context.Context) ([]rbac.PermissionNode, error) {
	return r.selectMany(ctx, r.selectLive().OrderBy("sort_order", "id"), "list permissions")
}

// ListMenu returns live menu nodes.
func (r *PermissionRepo) ListMenu(ctx context.Context) ([]rbac.PermissionNode, error) {
	q := r.selectLive().Where(squirrel.Eq{"is_menu": true}).OrderBy("sort_order", "id")
	return r.selectMany(ctx, q, "list menu permissions")
}

// ListByIDs returns the live nodes among ids.
func (r *PermissionRepo) ListByIDs(ctx context.Context, ids []int64) ([]rbac.PermissionNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := r.selectLive().Where(squirrel.Eq{"id": ids}).OrderBy("sort_order", "id")
	return r.selectMany(ctx, q, "list permissions by ids")
}

func (r *PermissionRepo) filterQuery(filter rbac.PermissionFilter) squirrel.SelectBuilder {
	q := r.selectLive()
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"description": pattern},
			squirrel.ILike{"route_path": pattern},
		})
	}
	if filter.IsMenu != nil {
		q = q.Where(squirrel.Eq{"is_menu": *filter.IsMenu})
	}
	return q
}

// List returns one page of live nodes matching filter and the total match count.
func (r *PermissionRepo) List(ctx context.Context, filter rbac.PermissionFilter) ([]rbac.PermissionNode, int64, error) {
	page := filter.Page.Normalize()
	q := r.filterQuery(filter)

	total, err := r.count(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	items, err := r.selectMany(ctx, paged(q.OrderBy("sort_order", "id"), page), "list permissions")
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListDeleted returns one page of the recycle bin, most recently deleted first.
func (r *PermissionRepo) ListDeleted(ctx context.Context, page rbac.Page) ([]rbac.PermissionNode, int64, error) {
	page = page.Normalize()
	q := r.selectAny().Where(squirrel.Eq{"deleted": true})

	total, err := r.count(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	items, err := r.selectMany(ctx, paged(q.OrderBy("deleted_at DESC", "id DESC"), page), "list deleted permissions")
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func paged(q squirrel.SelectBuilder, page rbac.Page) squirrel.SelectBuilder {
	return q.Limit(uint64(page.Limit)).Offset(uint64(page.Offset()))
}

// ExistsByName checks for a live node with name other than excludeID.
func (r *PermissionRepo) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	q := builder().Select("1").From(permissionsTable).
		Where(squirrel.Eq{"name": name, "deleted": false}).
		Where(squirrel.NotEq{"id": excludeID})
	return r.scalarBool(ctx, exists(q), "check permission name")
}

// ExistsByRoute checks for a live node with the route other than excludeID.
func (r *PermissionRepo) ExistsByRoute(ctx context.Context, method, path string, excludeID int64) (bool, error) {
	q := builder().Select("1").From(permissionsTable).
		Where(squirrel.Eq{"route_method": method, "route_path": path, "deleted": false}).
		Where(squirrel.NotEq{"id": excludeID})
	return r.scalarBool(ctx, exists(q), "check permission route")
}

func (r *PermissionRepo) childrenQuery(id int64, includeDeleted bool) squirrel.SelectBuilder {
	q := builder().Select("1").From(permissionsTable).Where(squirrel.Eq{"parent_id": id})
	if !includeDeleted {
		q = q.Where(squirrel.Eq{"deleted": false})
	}
	return exists(q)
}

// HasChildren reports whether any node points at id as parent.
func (r *PermissionRepo) HasChildren(ctx context.Context, id int64, includeDeleted bool) (bool, error) {
	return r.scalarBool(ctx, r.childrenQuery(id, includeDeleted), "check permission children")
}

// Create inserts node and fills its generated fields.
func (r *PermissionRepo) Create(ctx context.Context, node *rbac.PermissionNode) error {
	sql, args, err := builder().
		Insert(permissionsTable).
		SetMap(postgres.ToMap(node, permissionManaged...)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	row := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...)
	if err := row.Scan(&node.ID, &node.CreatedAt, &node.UpdatedAt); err != nil {
		return postgres.WrapError("insert permission", err)
	}
	return nil
}

// Update rewrites the editable columns of a live node.
func (r *PermissionRepo) Update(ctx context.Context, node *rbac.PermissionNode) error {
	sql, args, err := builder().
		Update(permissionsTable).
		SetMap(postgres.ToMap(node, permissionManaged...)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": node.ID, "deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.execOne(ctx, sql, args, "update permission", node.ID)
}

// SoftDelete moves a live node to the recycle bin.
func (r *PermissionRepo) SoftDelete(ctx context.Context, id int64) error {
	sql, args, err := builder().
		Update(permissionsTable).
		Set("deleted", true).
		Set("deleted_at", squirrel.Expr("now()")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.execOne(ctx, sql, args, "soft delete permission", id)
}

// Restore brings a node back from the recycle bin.
func (r *PermissionRepo) Restore(ctx context.Context, id int64) error {
	sql, args, err := builder().
		Update(permissionsTable).
		Set("deleted", false).
		Set("deleted_at", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "deleted": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.execOne(ctx, sql, args, "restore permission", id)
}

// Purge removes a soft-deleted node for good.
func (r *PermissionRepo) Purge(ctx context.Context, id int64) error {
	sql, args, err := builder().
		Delete(permissionsTable).
		Where(squirrel.Eq{"id": id, "deleted": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	return r.execOne(ctx, sql, args, "purge permission", id)
}

func (r *PermissionRepo) execOne(ctx context.Context, sql string, args []any, op string, id int64) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.WrapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("permission", id)
	}
	return nil
}

func statsQuery() squirrel.SelectBuilder {
	return builder().Select(
		"COUNT(*) FILTER (WHERE NOT deleted) AS total",
		"COUNT(*) FILTER (WHERE NOT deleted AND is_menu) AS menu",
		"COUNT(*) FILTER (WHERE NOT deleted AND NOT is_menu) AS action",
		"COUNT(*) FILTER (WHERE deleted) AS deleted",
	).From(permissionsTable)
}

// Stats counts catalog nodes by kind.
func (r *PermissionRepo) Stats(ctx context.Context) (rbac.CatalogStats, error) {
	var stats rbac.CatalogStats

	sql, args, err := statsQuery().ToSql()
	if err != nil {
		return stats, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &stats, sql, args...); err != nil {
		return stats, postgres.WrapError("permission stats", err)
	}
	return stats, nil
}

var _ rbac.CatalogRepository = (*PermissionRepo)(nil)
