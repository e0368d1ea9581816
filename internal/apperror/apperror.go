// Package apperror defines the domain error taxonomy shared by the service
// and handler layers.
//
// Services return these errors; handlers decide what they look like over HTTP
// (an inline form message, a 404 page, or a redirect to a safe view).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// AppError carries a sentinel (for errors.Is) plus a message that is safe to
// show to the user.
type AppError struct {
	Err     error  // sentinel from the list above
	Message string // human-readable message
	Field   string // form field that caused the error, if any
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that resource identified by key does not exist.
// key is whatever the caller looked it up by: an id, a slug or a username.
func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %q not found", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %q already exists", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// Handlers choose between a redirect to a safe view and an explicit 403.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// FieldOf returns the form field attached to err, or "" when err is not a
// field-scoped AppError.
func FieldOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
