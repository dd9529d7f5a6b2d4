package errs

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutError is returned when a deadline elapses before the backend answered.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
}

// Is reports ErrTimeout as the matching sentinel.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// FieldError names a single rejected input field.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError collects all rejected fields of one input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation: invalid input"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "validation: " + strings.Join(parts, "; ")
}

// Is reports ErrValidation as the matching sentinel.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for a single field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Reason: reason}}}
}

// BackendError carries the decoded error payload of a backend response.
type BackendError struct {
	Status  int    // HTTP status code
	Code    string // machine code, e.g. PGRST116 or invalid_credentials
	Message string
	Name    string // error family reported by the backend, if any
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString("backend")
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Code != "" {
		b.WriteString(" code=" + e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

// Is matches ErrBackendRejected, plus ErrNotFound for the PostgREST "no rows"
// code and ErrUnauthorized for 401. A bare 404 is a missing table or route, not a missing row.
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrBackendRejected:
		return true
	case ErrNotFound:
		return e.Code == "PGRST116"
	case ErrUnauthorized:
		return e.Status == 401
	}
	return false
}
