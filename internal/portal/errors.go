package portal

import (
	"errors"
	"fmt"

	"pecportal/internal/profiles"
)

var (
	// ErrValidation is returned when input validation fails.
	ErrValidation = errors.New("validation error")
	// ErrProfileUnavailable is returned when profile resolution gives up.
	ErrProfileUnavailable = errors.New("profile unavailable")
	// ErrClosed is returned by operations on a closed App.
	ErrClosed = errors.New("portal client closed")
)

// ValidationError wraps a validation message so callers can distinguish
// client errors from internal failures.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// PermissionDeniedError reports a role that may not perform an action or open a view.
type PermissionDeniedError struct {
	Role   profiles.Role
	Action string
}

func (e *PermissionDeniedError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("permission denied: sign in to %s", e.Action)
	}
	return fmt.Sprintf("permission denied: role %q may not %s", e.Role, e.Action)
}

func deny(user *profiles.User, action string) *PermissionDeniedError {
	err := &PermissionDeniedError{Action: action}
	if user != nil {
		err.Role = user.Role
	}
	return err
}
