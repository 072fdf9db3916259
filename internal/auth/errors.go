package auth

import (
	"errors"
	"strings"

	"github.com/geocoder89/memberhub/internal/domain/user"
)

var (
	ErrInvalidCredentials    = errors.New("email or password is incorrect")
	ErrDuplicateEmail        = user.ErrDuplicateEmail
	ErrInvalidOrExpiredToken = errors.New("password reset token is invalid or has expired")
	ErrPasswordMismatch      = errors.New("passwords do not match")
	ErrPersistence           = errors.New("persistence failure")
	ErrNotification          = errors.New("notification delivery failed")
	ErrNoSession             = errors.New("no active session")
)

// ValidationError collects every reason a submitted form was rejected.
// When one reason is a duplicate email it also matches ErrDuplicateEmail.
type ValidationError struct {
	Reasons []string
	cause   error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

func newValidationError(reasons []string, cause error) *ValidationError {
	return &ValidationError{Reasons: reasons, cause: cause}
}
