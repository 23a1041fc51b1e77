package harness

import (
	"github.com/mera-platform/mera/internal/model"
)

// TraceEvent records the outcome of one step.
type TraceEvent struct {
	Seq         int               `json:"seq"`
	Type        string            `json:"type"`
	ComponentID model.ImmutableID `json:"component_id,omitempty"`
	Action      string            `json:"action,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as scripted and every expect
	// clause matched.
	Pass bool `json:"pass"`

	// Errors lists every mismatch. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace has one event per executed step.
	Trace []TraceEvent `json:"trace"`

	// Fatal is the code of the engine error that stopped the run, if any.
	Fatal string `json:"fatal,omitempty"`

	Ticks    int64               `json:"ticks"`
	Handoffs int                 `json:"handoffs"`
	Active   []model.ImmutableID `json:"active"`

	// Bundle is the final state and Snapshot its canonical encoding.
	Bundle   model.Bundle `json:"-"`
	Snapshot []byte       `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Trace:  []TraceEvent{},
	}
}

// AddError records a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) trace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
