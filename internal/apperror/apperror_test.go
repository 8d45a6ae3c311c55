package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("project", "42"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("email", "email is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "email"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("Invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("Invalid token"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "Unauthorized does NOT match ErrForbidden",
			err:       Unauthorized("Invalid credentials"),
			target:    ErrForbidden,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("title", "title is required"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is() = %v, want %v", got, tt.wantMatch)
			}
		})
	}
}

// Wrapping with %w must keep both the sentinel and the AppError reachable.
func TestWrappedAppError(t *testing.T) {
	wrapped := fmt.Errorf("service: registering user: %w", Conflict("user", "email"))

	if !errors.Is(wrapped, ErrConflict) {
		t.Fatal("errors.Is(wrapped, ErrConflict) = false, want true")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As() could not extract *AppError")
	}
	if appErr.Field != "email" {
		t.Errorf("Field = %q, want %q", appErr.Field, "email")
	}
}

func TestErrorMessage(t *testing.T) {
	err := ValidationFailed("email", "Email already exists")
	if err.Error() != "Email already exists" {
		t.Errorf("Error() = %q, want %q", err.Error(), "Email already exists")
	}

	nf := NotFound("project", "7")
	if nf.Error() != "project not found with id 7" {
		t.Errorf("Error() = %q", nf.Error())
	}
}
