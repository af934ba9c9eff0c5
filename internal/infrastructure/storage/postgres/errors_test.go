package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"backoffice/internal/core/apperror"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError("noop", nil))

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "uq_rbac_permissions_name"}
	err := WrapError("insert permission", fmt.Errorf("exec: %w", unique))
	assert.True(t, apperror.IsConflict(err))
	assert.ErrorIs(t, err, unique)

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, apperror.IsConflict(WrapError("delete", fk)))

	cause := errors.New("conn reset")
	err = WrapError("select roles", cause)
	assert.True(t, apperror.HasCode(err, apperror.CodeStorage))
	assert.ErrorIs(t, err, cause)

	nf := apperror.NewNotFound("role", 1)
	assert.Same(t, nf, WrapError("get role", nf))
}
