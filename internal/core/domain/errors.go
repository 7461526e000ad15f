package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrSessionInvalid     = errors.New("session invalid")
	ErrForbidden          = errors.New("access forbidden")
	ErrNotFound           = errors.New("not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrSetupCompleted     = errors.New("setup already completed")
	ErrDecryption         = errors.New("credential decryption failed")
	ErrInvalidCSRF        = errors.New("invalid csrf token")
)

// ValidationError reports malformed input. Details lists every problem found;
// Requirements optionally carries a checklist the client can render.
type ValidationError struct {
	Details      []string
	Requirements []string
}

func NewValidationError(details ...string) *ValidationError {
	return &ValidationError{Details: details}
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return "invalid input"
	}
	return strings.Join(e.Details, "; ")
}

// First returns the first actionable message.
func (e *ValidationError) First() string {
	if len(e.Details) == 0 {
		return "invalid input"
	}
	return e.Details[0]
}

// RateLimitError is returned when a client exhausted its budget.
type RateLimitError struct {
	Result RateLimitResult
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}
