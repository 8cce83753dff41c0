package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream error")
)

// AppError is the domain error type shared by all layers.
// Handlers map the wrapped sentinel to an HTTP status; Message is what
// the client sees, Code is the stable machine-readable identifier.
type AppError struct {
	Err     error  // wrapped sentinel (ErrNotFound, ErrValidation, ...)
	Code    string // stable error code, e.g. "slug_exists"
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    "not_found",
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    "validation_error",
		Message: message,
		Field:   field,
	}
}

// SyntaxInvalid reports a failed pre-save syntax check. The line number is
// folded into the message when the validator could pinpoint one.
func SyntaxInvalid(message string, line int) *AppError {
	if line > 0 {
		message = fmt.Sprintf("%s on line %d", message, line)
	}
	return &AppError{
		Err:     ErrValidation,
		Code:    "syntax_error",
		Message: message,
		Field:   "code",
	}
}

func Conflict(code, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    code,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Code:    "forbidden",
		Message: message,
	}
}

// Unauthorized returns an AppError for missing or invalid credentials.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    "unauthorized",
		Message: message,
	}
}

// Upstream wraps an error from an external service (the AI provider).
// HTTP handlers map this to 502 Bad Gateway. The code distinguishes
// timeout, network, api and empty-response failures so the UI can show
// a specific notice for each.
func Upstream(code, message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Code:    code,
		Message: message,
	}
}
