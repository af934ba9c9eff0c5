// Package rbac_repo provides PostgreSQL implementations of the RBAC repositories.
package rbac_repo

import (
	"github.com/Masterminds/squirrel"
)

const (
	permissionsTable     = "rbac_permissions"
	rolesTable           = "roles"
	rolePermissionsTable = "role_permissions"
)

// builder returns a squirrel builder with PostgreSQL placeholder format.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// exists wraps a select in SELECT EXISTS(...).
func exists(q squirrel.SelectBuilder) squirrel.SelectBuilder {
	return q.Prefix("SELECT EXISTS (").Suffix(")")
}
