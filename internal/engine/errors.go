package engine

import (
	"errors"
	"fmt"

	"github.com/mera-platform/mera/internal/model"
)

// RuntimeError is a fatal error that stops the loop.
//
// Component-local failures never surface as a RuntimeError; they are logged
// and the component is removed.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Family is the message family being drained, if any.
	Family model.Family

	// ComponentID identifies the component involved, if any.
	ComponentID model.ImmutableID

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDeploymentDefect means the current page cannot be instantiated:
	// a component has no registered type, permission row, constructor or
	// primary manager.
	ErrCodeDeploymentDefect RuntimeErrorCode = "DEPLOYMENT_DEFECT"

	// ErrCodeHandlerFailed means a message outside the component-progress
	// family was rejected or its drain panicked.
	ErrCodeHandlerFailed RuntimeErrorCode = "HANDLER_FAILED"

	// ErrCodeSelfCheckFailed means the tick's snapshot was not perfectly
	// valid.
	ErrCodeSelfCheckFailed RuntimeErrorCode = "SELF_CHECK_FAILED"

	// ErrCodePanic means the tick itself panicked outside any component.
	ErrCodePanic RuntimeErrorCode = "CORE_PANIC"
)

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ComponentID != 0 {
		msg += fmt.Sprintf(" (component=%d", e.ComponentID)
		if e.Family != 0 {
			msg += fmt.Sprintf(", family=%s", e.Family)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is or wraps a *RuntimeError.
func IsFatal(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// IsSelfCheckFailure reports whether err is a SELF_CHECK_FAILED error.
func IsSelfCheckFailure(err error) bool {
	return hasCode(err, ErrCodeSelfCheckFailed)
}

// IsDeploymentDefect reports whether err is a DEPLOYMENT_DEFECT error.
func IsDeploymentDefect(err error) bool {
	return hasCode(err, ErrCodeDeploymentDefect)
}

// IsHandlerFailure reports whether err is a HANDLER_FAILED error.
func IsHandlerFailure(err error) bool {
	return hasCode(err, ErrCodeHandlerFailed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// ErrClosed is returned by Dispatch after the loop has stopped.
var ErrClosed = errors.New("engine closed")
