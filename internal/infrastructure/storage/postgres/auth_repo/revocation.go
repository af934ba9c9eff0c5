package auth_repo

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/domain/auth"
	"backoffice/internal/infrastructure/storage/postgres"
)

// RevocationRepo implements auth.RevocationStore over the revoked_tokens table.
type RevocationRepo struct {
	txm *postgres.TxManager
}

// NewRevocationRepo creates a new revocation repository.
func NewRevocationRepo(txm *postgres.TxManager) *RevocationRepo {
	return &RevocationRepo{txm: txm}
}

// Revoke records a token ID until its expiry.
func (r *RevocationRepo) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	query := `
		INSERT INTO revoked_tokens (token_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, query, tokenID, until); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token is revoked and not yet expired.
func (r *RevocationRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1 AND expires_at > now())`

	var revoked bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// CleanupExpired removes entries whose tokens expired anyway.
func (r *RevocationRepo) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.txm.GetQuerier(ctx).Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup revoked tokens: %w", err)
	}
	return result.RowsAffected(), nil
}

var _ auth.RevocationStore = (*RevocationRepo)(nil)
