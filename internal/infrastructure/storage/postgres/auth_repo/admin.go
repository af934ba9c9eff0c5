// Package auth_repo provides PostgreSQL implementations for auth repositories.
package auth_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"backoffice/internal/core/apperror"
	"backoffice/internal/domain/auth"
	"backoffice/internal/domain/rbac"
	"backoffice/internal/infrastructure/storage/postgres"
)

const adminColumns = `id, username, email, password_hash, role_id, status,
	last_login_at, COALESCE(last_login_ip, '') AS last_login_ip, created_at, updated_at`

// AdminRepo implements auth.AdminRepository and rbac.AdminCounter.
type AdminRepo struct {
	txm *postgres.TxManager
}

// NewAdminRepo creates a new admin repository.
func NewAdminRepo(txm *postgres.TxManager) *AdminRepo {
	return &AdminRepo{txm: txm}
}

// GetByUsername retrieves an admin by login name.
func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (*auth.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE username = $1`

	var admin auth.Admin
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &admin, query, username); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("admin", username)
		}
		return nil, fmt.Errorf("query admin: %w", err)
	}
	return &admin, nil
}

// GetByID retrieves an admin by ID.
func (r *AdminRepo) GetByID(ctx context.Context, adminID int64) (*auth.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`

	var admin auth.Admin
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &admin, query, adminID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("admin", adminID)
		}
		return nil, fmt.Errorf("query admin: %w", err)
	}
	return &admin, nil
}

// Create inserts a new admin.
func (r *AdminRepo) Create(ctx context.Context, admin *auth.Admin) error {
	query := `
		INSERT INTO admins (username, email, password_hash, role_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.txm.GetQuerier(ctx).QueryRow(ctx, query,
		admin.Username, admin.Email, admin.PasswordHash, admin.RoleID, admin.Status,
	).Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		return postgres.WrapError("insert admin", err)
	}
	return nil
}

// RecordLogin stamps the last successful login.
func (r *AdminRepo) RecordLogin(ctx context.Context, adminID int64, at time.Time, ip string) error {
	query := `UPDATE admins SET last_login_at = $2, last_login_ip = NULLIF($3, ''), updated_at = now() WHERE id = $1`

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, adminID, at, ip); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// CountByRole counts admins assigned to a role.
func (r *AdminRepo) CountByRole(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM admins WHERE role_id = $1`, roleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admins by role: %w", err)
	}
	return n, nil
}

var (
	_ auth.AdminRepository = (*AdminRepo)(nil)
	_ rbac.AdminCounter    = (*AdminRepo)(nil)
)
