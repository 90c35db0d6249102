package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidations(t *testing.T) {
	require.NoError(t, Validations(nil))

	err := Validations([]string{"title is required", "date end must be after date start"})
	require.True(t, IsValidation(err))
	require.Equal(t, "title is required; date end must be after date start", err.Error())

	wrapped := fmt.Errorf("create opportunity: %w", err)
	require.True(t, IsValidation(wrapped))
}

func TestNotFound(t *testing.T) {
	err := NotFound("Opportunity", "abc")
	require.True(t, IsNotFound(err))
	require.True(t, errors.Is(err, ErrNotFound))
	require.Contains(t, err.Error(), "Opportunity with id 'abc' does not exist")
}

func TestConflictAndForbidden(t *testing.T) {
	require.ErrorIs(t, Conflict("verification for '%s' is already pending", "x"), ErrConflict)
	require.ErrorIs(t, Forbidden("not an admin of '%s'", "org"), ErrForbidden)
	require.False(t, IsValidation(ErrConflict))
}
