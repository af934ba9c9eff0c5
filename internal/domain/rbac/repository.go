package rbac

import (
	"context"
)

// CatalogRepository stores permission nodes.
// Unless stated otherwise, reads only see non-deleted nodes and Get returns
// an apperror NotFound for missing ids.
type CatalogRepository interface {
	Get(ctx context.Context, id int64) (*PermissionNode, error)
	// GetAny returns the node whether or not it is soft-deleted.
	GetAny(ctx context.Context, id int64) (*PermissionNode, error)
	// FindByRoute returns nil, nil when no node carries the route.
	FindByRoute(ctx context.Context, method, path string) (*PermissionNode, error)
	ListAll(ctx context.Context) ([]PermissionNode, error)
	ListMenu(ctx context.Context) ([]PermissionNode, error)
	ListByIDs(ctx context.Context, ids []int64) ([]PermissionNode, error)
	List(ctx context.Context, filter PermissionFilter) ([]PermissionNode, int64, error)
	ListDeleted(ctx context.Context, page Page) ([]PermissionNode, int64, error)

	// ExistsByName and ExistsByRoute ignore excludeID so updates can keep their own values.
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	ExistsByRoute(ctx context.Context, method, path string, excludeID int64) (bool, error)
	HasChildren(ctx context.Context, id int64, includeDeleted bool) (bool, error)

	Create(ctx context.Context, node *PermissionNode) error
	Update(ctx context.Context, node *PermissionNode) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	Purge(ctx context.Context, id int64) error
	Stats(ctx context.Context) (CatalogStats, error)
}

// RoleRepository stores roles.
type RoleRepository interface {
	Get(ctx context.Context, id int64) (*Role, error)
	// GetForUpdate locks the role row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id int64) error
}

// AssignmentRepository stores role to permission links.
type AssignmentRepository interface {
	Has(ctx context.Context, roleID, permissionID int64) (bool, error)
	ListPermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	// Replace makes ids the complete set for roleID.
	Replace(ctx context.Context, roleID int64, ids []int64) error
	DetachPermission(ctx context.Context, permissionID int64) (int64, error)
	DetachRole(ctx context.Context, roleID int64) error
}

// AdminCounter reports how many administrators use a role.
type AdminCounter interface {
	CountByRole(ctx context.Context, roleID int64) (int64, error)
}

// Invalidator drops cached route resolutions.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

// Broadcaster tells other instances that the catalog changed.
type Broadcaster interface {
	Publish(ctx context.Context) error
}
