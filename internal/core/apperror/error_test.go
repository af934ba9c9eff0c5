package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("replace role permissions: %w", NewStorage("delete role_permissions", cause))

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
	assert.True(t, HasCode(err, CodeStorage))
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("role", 7)))
	assert.True(t, IsConflict(NewConflict("has children")))
	assert.True(t, IsConflict(NewDuplicate("permission", "name", "roles")))
	assert.True(t, IsInvalidArgument(NewInvalidArgument("bad ids")))
	assert.True(t, IsInvalidArgument(NewValidation("bad body")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := NewInvalidArgument("not assignable").WithDetail("ids", []int64{4, 9})

	assert.Equal(t, []int64{4, 9}, err.Details["ids"])
	assert.Equal(t, "INVALID_ARGUMENT: not assignable", err.Error())
}
