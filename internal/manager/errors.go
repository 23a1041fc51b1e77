package manager

import (
	"errors"
	"fmt"
)

// ValidationError reports a rejected mutation. Managers and queue managers
// return it for arguments that do not match the registry or the kind's
// method contract; nothing is changed when it is returned.
type ValidationError struct {
	// Manager names the state slice, e.g. "overall_progress".
	Manager string
	// Op is the rejected operation.
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Manager, e.Op, e.Reason)
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(mgr, op, format string, args ...any) *ValidationError {
	return &ValidationError{Manager: mgr, Op: op, Reason: fmt.Sprintf(format, args...)}
}
