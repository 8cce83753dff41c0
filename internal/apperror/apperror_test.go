package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelUnwrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"not found", NotFound("snippet", 42), ErrNotFound},
		{"validation", ValidationFailed("title", "title is required"), ErrValidation},
		{"syntax", SyntaxInvalid("unexpected token", 3), ErrValidation},
		{"conflict", Conflict("slug_exists", "slug already in use"), ErrConflict},
		{"forbidden", Forbidden("admins only"), ErrForbidden},
		{"unauthorized", Unauthorized("login required"), ErrUnauthorized},
		{"upstream", Upstream("timeout_error", "the AI timed out"), ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
		})
	}
}

// wrapping with fmt.Errorf must keep both the sentinel and the AppError
// reachable, since handlers unwrap through service-layer context
func TestWrappedErrorsStayMatchable(t *testing.T) {
	err := fmt.Errorf("create snippet: %w", Conflict("slug_exists", "slug already in use"))

	if !errors.Is(err, ErrConflict) {
		t.Error("sentinel lost through wrapping")
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("AppError lost through wrapping")
	}
	if appErr.Code != "slug_exists" {
		t.Errorf("Code = %q", appErr.Code)
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("snippet", int64(7))
	if err.Error() != "snippet not found with id 7" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Code != "not_found" {
		t.Errorf("Code = %q", err.Code)
	}
}

func TestSyntaxInvalidLineFolding(t *testing.T) {
	withLine := SyntaxInvalid("unexpected '}'", 4)
	if withLine.Message != "unexpected '}' on line 4" {
		t.Errorf("Message = %q", withLine.Message)
	}
	if withLine.Field != "code" {
		t.Errorf("Field = %q", withLine.Field)
	}

	noLine := SyntaxInvalid("unmatched braces", 0)
	if noLine.Message != "unmatched braces" {
		t.Errorf("Message = %q", noLine.Message)
	}
}

func TestValidationFailedCarriesField(t *testing.T) {
	err := ValidationFailed("type", "invalid snippet type")
	if err.Field != "type" || err.Code != "validation_error" {
		t.Errorf("got %+v", err)
	}
}
