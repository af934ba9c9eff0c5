// Package authtest provides an in-memory auth.AdminRepository for tests.
package authtest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"backoffice/internal/core/apperror"
	"backoffice/internal/domain/auth"
)

// Admins is an in-memory auth.AdminRepository.
type Admins struct {
	mu     sync.Mutex
	byID   map[int64]*auth.Admin
	nextID int64
}

// NewAdmins creates an empty repository.
func NewAdmins() *Admins {
	return &Admins{byID: make(map[int64]*auth.Admin)}
}

// Add creates an active admin with a cheaply hashed password and returns its id.
func (a *Admins) Add(username, password string, roleID int64) int64 {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	admin := &auth.Admin{Username: username, PasswordHash: string(hash), RoleID: roleID, Status: auth.StatusActive}
	_ = a.Create(context.Background(), admin)
	return admin.ID
}

func (a *Admins) GetByUsername(_ context.Context, username string) (*auth.Admin, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, admin := range a.byID {
		if admin.Username == username {
			c := *admin
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("admin", username)
}

func (a *Admins) GetByID(_ context.Context, id int64) (*auth.Admin, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	admin, ok := a.byID[id]
	if !ok {
		return nil, apperror.NewNotFound("admin", id)
	}
	c := *admin
	return &c, nil
}

func (a *Admins) Create(_ context.Context, admin *auth.Admin) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	admin.ID = a.nextID
	admin.CreatedAt = time.Now().UTC()
	admin.UpdatedAt = admin.CreatedAt
	c := *admin
	a.byID[admin.ID] = &c
	return nil
}

func (a *Admins) RecordLogin(_ context.Context, id int64, at time.Time, ip string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if admin, ok := a.byID[id]; ok {
		admin.LastLoginAt = &at
		admin.LastLoginIP = ip
	}
	return nil
}

var _ auth.AdminRepository = (*Admins)(nil)
