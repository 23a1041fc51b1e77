package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/engine"
	"github.com/mera-platform/mera/internal/integrity"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/testutil"
)

// Harness drives one engine through a scenario's steps.
//
// The engine is ticked directly on the caller's goroutine, so the harness
// may read and write manager state between ticks.
type Harness struct {
	state  *manager.State
	engine *engine.Engine
	clock  *testutil.FakeClock
	sink   *countingSink
	result *Result
}

// countingSink stands in for the save manager.
type countingSink struct {
	handoffs int
}

func (s *countingSink) Queue([]byte) {
	s.handoffs++
}

type options struct {
	reg    curriculum.Registry
	logger *slog.Logger
}

// Option configures Run.
type Option func(*options)

// WithRegistry runs against reg instead of loading scenario.Registry.
func WithRegistry(reg curriculum.Registry) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithLogger sets the engine logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// An error means the scenario could not be set up: an unreadable registry,
// an initial bundle owned by someone else or an invalid start page. Steps
// that misbehave and expectations that do not match are reported in the
// result instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	reg := o.reg
	if reg == nil {
		static, err := curriculum.Load(scenario.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to load registry: %w", err)
		}
		reg = static
	}

	owner := scenario.Owner
	if owner == "" {
		owner = DefaultOwner
	}

	bundle, err := initialBundle(scenario, owner, reg)
	if err != nil {
		return nil, err
	}

	state, err := manager.NewState(reg, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to build state: %w", err)
	}

	clock := testutil.NewFakeClock(testutil.Epoch)
	sink := &countingSink{}
	h := &Harness{
		state: state,
		clock: clock,
		sink:  sink,
		engine: engine.New(reg, state,
			engine.WithClock(clock),
			engine.WithLogger(o.logger),
			engine.WithSink(sink),
		),
		result: NewResult(),
	}
	defer h.engine.Close()

	h.run(context.Background(), scenario.Steps)
	h.finish(scenario.Expect)
	return h.result, nil
}

func initialBundle(s *Scenario, owner string, reg curriculum.Registry) (model.Bundle, error) {
	bundle := integrity.DefaultBundle(owner, reg)
	if s.Initial != "" {
		raw, err := os.ReadFile(s.Initial)
		if err != nil {
			return model.Bundle{}, fmt.Errorf("failed to read initial bundle: %w", err)
		}
		res, err := integrity.Recover(raw, owner, reg)
		if err != nil {
			return model.Bundle{}, fmt.Errorf("failed to recover initial bundle: %w", err)
		}
		if res.Critical.IdentityMismatch {
			return model.Bundle{}, fmt.Errorf("initial bundle belongs to %q, not %q", res.Bundle.Metadata.Owner, owner)
		}
		bundle = res.Bundle
	}

	if s.Start != nil {
		if !curriculum.ValidPosition(reg, s.Start.Entity, s.Start.Page) {
			return model.Bundle{}, fmt.Errorf("start: entity %d has no page %d", s.Start.Entity, s.Start.Page)
		}
		bundle.NavigationState = model.NavigationState{
			CurrentEntityID: s.Start.Entity,
			CurrentPage:     s.Start.Page,
		}
	}
	return bundle, nil
}

// run executes steps until they run out or a tick fails.
func (h *Harness) run(ctx context.Context, steps []Step) {
	for i, step := range steps {
		if err := h.step(ctx, i, step); err != nil {
			var re *engine.RuntimeError
			if errors.As(err, &re) {
				h.result.Fatal = string(re.Code)
			} else {
				h.result.Fatal = err.Error()
			}
			h.result.trace(TraceEvent{Type: step.Kind(), Error: err.Error()})
			return
		}
	}
}

// step runs one step. A returned error is fatal to the run.
func (h *Harness) step(ctx context.Context, i int, step Step) error {
	switch step.Kind() {
	case StepTick:
		for range step.Tick {
			if err := h.engine.Tick(ctx); err != nil {
				return err
			}
		}
		h.result.trace(TraceEvent{Type: StepTick})

	case StepAdvance:
		h.clock.Advance(step.Advance)
		h.result.trace(TraceEvent{Type: StepAdvance})

	case StepInteract:
		return h.interact(ctx, i, step.Interact)

	case StepNavigate:
		nav := step.Navigate
		if err := h.state.Navigation.SetCurrentView(nav.Entity, nav.Page, h.clock.Millis()); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: navigate: %v", i, err))
			h.result.trace(TraceEvent{Type: StepNavigate, Error: err.Error()})
			return nil
		}
		if err := h.engine.Tick(ctx); err != nil {
			return err
		}
		h.result.trace(TraceEvent{Type: StepNavigate})
	}
	return nil
}

func (h *Harness) interact(ctx context.Context, i int, in *Interaction) error {
	args := model.Object{}
	if in.Args != nil {
		v, err := model.FromAny(in.Args)
		if err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: interact args: %v", i, err))
			return nil
		}
		args = v.(model.Object)
	}

	reply := make(chan error, 1)
	if !h.engine.Dispatch(engine.UIEvent{ComponentID: in.Component, Action: in.Action, Args: args, Reply: reply}) {
		return fmt.Errorf("engine closed")
	}
	if err := h.engine.Tick(ctx); err != nil {
		return err
	}

	var rejected error
	select {
	case rejected = <-reply:
	default:
		rejected = fmt.Errorf("no reply")
	}

	ev := TraceEvent{Type: StepInteract, ComponentID: in.Component, Action: in.Action}
	if rejected != nil {
		ev.Error = rejected.Error()
	}
	h.result.trace(ev)

	switch {
	case rejected != nil && !in.Reject:
		h.result.AddError(fmt.Sprintf("steps[%d]: %d %s rejected: %v", i, in.Component, in.Action, rejected))
	case rejected == nil && in.Reject:
		h.result.AddError(fmt.Sprintf("steps[%d]: %d %s accepted, expected rejection", i, in.Component, in.Action))
	}
	return nil
}

// finish captures the final state and evaluates expectations.
func (h *Harness) finish(expect Expect) {
	r := h.result
	r.Bundle = h.engine.Snapshot()
	r.Ticks = h.engine.Ticks()
	r.Handoffs = h.sink.handoffs
	r.Active = h.engine.ActiveComponents()

	snapshot, err := r.Bundle.Canonical()
	if err != nil {
		r.AddError(fmt.Sprintf("encode final snapshot: %v", err))
	}
	r.Snapshot = snapshot

	for _, msg := range EvaluateExpect(r, expect) {
		r.AddError(msg)
	}
}
