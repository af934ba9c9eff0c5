package auth

import (
	"time"

	"backoffice/internal/core/apperror"
)

// Admin status values.
const (
	StatusDisabled = 0
	StatusActive   = 1
)

// Admin is a back-office operator account.
type Admin struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	RoleID       int64      `db:"role_id" json:"roleId"`
	Status       int        `db:"status" json:"status"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	LastLoginIP  string     `db:"last_login_ip" json:"lastLoginIp,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// CanLogin checks if the account may sign in.
func (a *Admin) CanLogin() error {
	if a.Status != StatusActive {
		return apperror.NewForbidden("账号已禁用")
	}
	return nil
}

// Credentials is a login attempt.
type Credentials struct {
	Username string
	Password string
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	Admin     *Admin    `json:"admin"`
}
