// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across adapter/repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates there is no signed-in user or credentials were rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the signed-in user may not perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrTimeout indicates the caller stopped waiting for a backend call.
	ErrTimeout = errors.New("timeout")

	// ErrValidation indicates input rejected before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrBackendRejected indicates the backend answered with an error payload.
	ErrBackendRejected = errors.New("backend rejected request")

	// ErrPartialWrite indicates a composite write stopped after some steps were applied.
	ErrPartialWrite = errors.New("partial write")
)
