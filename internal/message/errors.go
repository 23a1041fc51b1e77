package message

import (
	"errors"
	"fmt"

	"github.com/mera-platform/mera/internal/model"
)

// UnknownMethodError is returned by a handler for a method name it does not
// implement.
type UnknownMethodError struct {
	Family model.Family
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("%s: unknown method %q", e.Family, e.Method)
}

// IsUnknownMethod reports whether err is or wraps an *UnknownMethodError.
func IsUnknownMethod(err error) bool {
	var ue *UnknownMethodError
	return errors.As(err, &ue)
}

// ArgsError reports malformed message arguments.
type ArgsError struct {
	Method string
	Reason string
}

func (e *ArgsError) Error() string {
	return fmt.Sprintf("%s: bad arguments: %s", e.Method, e.Reason)
}
