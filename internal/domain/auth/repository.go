package auth

import (
	"context"
	"time"
)

// AdminRepository defines admin storage operations.
type AdminRepository interface {
	// GetByUsername returns an apperror NotFound when no account matches.
	GetByUsername(ctx context.Context, username string) (*Admin, error)

	GetByID(ctx context.Context, adminID int64) (*Admin, error)

	// Create stores a new admin and sets its ID.
	Create(ctx context.Context, admin *Admin) error

	// RecordLogin stamps the last successful login.
	RecordLogin(ctx context.Context, adminID int64, at time.Time, ip string) error
}

// RevocationStore remembers logged-out tokens until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
