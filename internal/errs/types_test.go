package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeoutError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("list manuals: %w", &TimeoutError{Op: "manuals.list", After: 7 * time.Second})
	require.ErrorIs(t, err, ErrTimeout)
	require.NotErrorIs(t, err, ErrBackendRejected)
	require.Contains(t, err.Error(), "7s")

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "manuals.list", te.Op)
}

func TestBackendError_Is(t *testing.T) {
	notFound := &BackendError{Status: 406, Code: "PGRST116", Message: "no rows"}
	require.ErrorIs(t, notFound, ErrBackendRejected)
	require.ErrorIs(t, notFound, ErrNotFound)
	require.NotErrorIs(t, notFound, ErrUnauthorized)

	denied := &BackendError{Status: 401, Code: "bad_jwt"}
	require.ErrorIs(t, denied, ErrUnauthorized)
	require.NotErrorIs(t, denied, ErrNotFound)
	require.Equal(t, "backend status=401 code=bad_jwt", denied.Error())

	missingTable := &BackendError{Status: 404, Code: "PGRST205", Message: "Could not find the table 'public.profiles'"}
	require.ErrorIs(t, missingTable, ErrBackendRejected)
	require.NotErrorIs(t, missingTable, ErrNotFound)
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{{"title", "is required"}, {"steps", "must not be empty"}}}
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "validation: title is required; steps must not be empty", err.Error())
	require.ErrorIs(t, Invalid("role", "is unknown"), ErrValidation)
}
