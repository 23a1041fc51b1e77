package component

import (
	"errors"
	"fmt"

	"github.com/mera-platform/mera/internal/model"
)

// DeploymentError means the deployed registry and the runtime disagree: a
// component whose type, permission row, constructor or primary manager is
// missing. It is never caused by learner data and must stop the runtime.
type DeploymentError struct {
	ComponentID model.ImmutableID
	Reason      string
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deployment defect: component %d: %s", e.ComponentID, e.Reason)
}

// IsDeploymentDefect reports whether err is or wraps a *DeploymentError.
func IsDeploymentDefect(err error) bool {
	var de *DeploymentError
	return errors.As(err, &de)
}

// ActionError reports a UI action a component does not support.
type ActionError struct {
	ComponentID model.ImmutableID
	Action      string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("component %d: unsupported action %q", e.ComponentID, e.Action)
}
