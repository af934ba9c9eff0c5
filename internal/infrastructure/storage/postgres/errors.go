package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"backoffice/internal/core/apperror"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// WrapError converts a driver error into an AppError. Unique and foreign key
// violations become conflicts; everything else is a storage error that keeps
// the driver error as its cause.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.NewConflict("record already exists").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewConflict("record is still referenced").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return apperror.NewStorage(op, err)
}
