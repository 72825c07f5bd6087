package app

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrAuthFailed       = errors.New("login failed")
	ErrNotFound         = errors.New("not found")
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrPostNotFound     = fmt.Errorf("post %w", ErrNotFound)
	ErrForbidden        = errors.New("forbidden")
	ErrEmailExists      = errors.New("email already exists")
	ErrStorage          = errors.New("storage unavailable")
	ErrPasswordMismatch = &ValidationError{Field: "confirm_password", Message: "passwords do not match"}
)

// ValidationError reports the first offending input field. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
