package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/component"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/integrity"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/message"
	"github.com/mera-platform/mera/internal/model"
)

const (
	// DefaultTickInterval is the fixed loop period.
	DefaultTickInterval = 50 * time.Millisecond

	// DefaultPersistInterval is the longest the engine goes without handing
	// a snapshot to the sink, even when nothing changed.
	DefaultPersistInterval = 15 * time.Second
)

// Teardown reasons, also used as metric labels.
const (
	ReasonInteractPanic   = "interact_panic"
	ReasonDrainPanic      = "drain_panic"
	ReasonSpoofedMessage  = "spoofed_message"
	ReasonHandlerRejected = "handler_rejected"
)

// ErrNotActive is replied to UI events addressed to a component that is not
// on the current page.
var ErrNotActive = errors.New("component not active")

// Sink receives canonical snapshot payloads. save.Manager implements it.
//
// Queue is called on the engine goroutine and must not block.
type Sink interface {
	Queue(payload []byte)
}

// Observer receives loop telemetry. *metrics.Metrics implements it.
type Observer interface {
	ObserveTick(d time.Duration)
	ObserveMessage(f model.Family, accepted bool)
	ObserveTeardown(reason string)
	ObserveHandoff()
}

type nopObserver struct{}

func (nopObserver) ObserveTick(time.Duration)         {}
func (nopObserver) ObserveMessage(model.Family, bool) {}
func (nopObserver) ObserveTeardown(string)            {}
func (nopObserver) ObserveHandoff()                   {}

// Engine is the single-writer runtime loop of one session.
//
// CRITICAL: All manager mutations happen inside Tick. External callers use
// Dispatch to reach components.
//
// INVARIANTS:
//   - every component in a polling map is in the active set
//   - a component is polled only for families its kind is permitted
//   - the snapshot handed to the sink always passed the self-check
type Engine struct {
	reg      curriculum.Registry
	state    *manager.State
	handlers map[model.Family]message.Handler
	inst     *component.Instantiator
	clock    clock.Clock
	seq      *clock.Sequence
	sink     Sink
	observer Observer
	logger   *slog.Logger
	instOpts []component.InstantiatorOption

	tickInterval    time.Duration
	persistInterval time.Duration

	inbox *inbox

	set     *component.Set
	view    model.NavigationState
	rebuild bool

	lastPayload []byte
	lastHandoff time.Time
	ticks       int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for timestamps and the persist interval.
// Default: clock.System.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTickInterval sets the Run loop period. Default: 50ms.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.tickInterval = d
	}
}

// WithPersistInterval sets the periodic hand-off interval. Default: 15s.
func WithPersistInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.persistInterval = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSink sets where snapshots are handed off. Without a sink snapshots
// are still self-checked but go nowhere.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithObserver sets the telemetry observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithInstantiatorOptions passes options through to the instantiator, e.g.
// component.WithConstructor in tests.
func WithInstantiatorOptions(opts ...component.InstantiatorOption) Option {
	return func(e *Engine) {
		e.instOpts = append(e.instOpts, opts...)
	}
}

// New creates an engine over state. The state must have been built from a
// validated bundle; the engine becomes its only writer.
func New(reg curriculum.Registry, state *manager.State, opts ...Option) *Engine {
	e := &Engine{
		reg:             reg,
		state:           state,
		clock:           clock.System{},
		seq:             clock.NewSequence(),
		observer:        nopObserver{},
		logger:          slog.Default(),
		tickInterval:    DefaultTickInterval,
		persistInterval: DefaultPersistInterval,
		inbox:           newInbox(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.handlers = message.Handlers(state, e.clock)
	instOpts := append([]component.InstantiatorOption{component.WithLogger(e.logger)}, e.instOpts...)
	e.inst = component.NewInstantiator(reg, state.Components, e.clock, e.seq, instOpts...)
	return e
}

// Dispatch queues a UI event for delivery on the next tick.
// Thread-safe. Returns false once the loop has stopped.
func (e *Engine) Dispatch(ev UIEvent) bool {
	return e.inbox.Enqueue(ev)
}

// Run ticks until ctx ends or a tick fails. The component set is destroyed
// and the inbox closed on return.
func (e *Engine) Run(ctx context.Context) error {
	defer e.Close()

	e.logger.Info("engine started",
		"tick_interval", e.tickInterval,
		"persist_interval", e.persistInterval)

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		if err := e.Tick(ctx); err != nil {
			if ctx.Err() == nil {
				e.logger.Error("engine stopped", "error", err, "ticks", e.ticks)
			}
			return err
		}
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping", "reason", ctx.Err(), "ticks", e.ticks)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close destroys the live component set and rejects further UI events.
// Safe to call more than once.
func (e *Engine) Close() {
	e.inbox.Close()
	if e.set != nil {
		e.set.DestroyAll(e.logger)
		e.set = nil
	}
}

// Tick runs one loop iteration. Any returned error is fatal.
func (e *Engine) Tick(ctx context.Context) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{Code: ErrCodePanic, Message: fmt.Sprint(r)}
		}
		e.observer.ObserveTick(time.Since(start))
	}()
	e.ticks++

	if e.set == nil || e.rebuild {
		if err := e.instantiate(); err != nil {
			return err
		}
	}

	e.deliver()

	if err := e.drain(); err != nil {
		return err
	}

	// Navigation may have moved during the drain. The new page is built at
	// the start of the next tick.
	if cur := e.state.Navigation.Current(); !cur.SameView(e.view) {
		e.logger.Debug("navigation changed",
			"entity_id", cur.CurrentEntityID,
			"page", cur.CurrentPage)
		e.rebuild = true
	}

	payload, err := e.selfCheck()
	if err != nil {
		return err
	}
	e.handOff(payload)
	return nil
}

func (e *Engine) instantiate() error {
	if e.set != nil {
		e.set.DestroyAll(e.logger)
		e.set = nil
	}
	view := e.state.Navigation.Current()
	set, err := e.inst.Instantiate(view.CurrentEntityID, view.CurrentPage)
	if err != nil {
		var de *component.DeploymentError
		re := &RuntimeError{Code: ErrCodeDeploymentDefect, Message: "instantiate page", Err: err}
		if errors.As(err, &de) {
			re.ComponentID = de.ComponentID
		}
		return re
	}
	e.set = set
	e.view = view
	e.rebuild = false
	return nil
}

// deliver hands queued UI events to active components. An Interact error
// is the component refusing the action; a panic tears the component down.
func (e *Engine) deliver() {
	for _, ev := range e.inbox.DrainAll() {
		c, ok := e.set.Active[ev.ComponentID]
		if !ok {
			ev.reply(fmt.Errorf("%w: %d", ErrNotActive, ev.ComponentID))
			continue
		}
		err := e.interact(c, ev)
		if err != nil {
			e.logger.Warn("interaction rejected",
				"component_id", ev.ComponentID,
				"action", ev.Action,
				"error", err)
		}
		ev.reply(err)
	}
}

func (e *Engine) interact(c component.Component, ev UIEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interact %q panicked: %v", ev.Action, r)
			e.teardown(ev.ComponentID, ReasonInteractPanic, err)
		}
	}()
	args := ev.Args
	if args == nil {
		args = model.Object{}
	}
	return c.Interact(ev.Action, args.Clone())
}

// drain polls every active component in display order, one family at a
// time in model.Families order.
func (e *Engine) drain() error {
	for _, id := range slices.Clone(e.set.Order) {
		for _, f := range model.Families {
			c, ok := e.set.Polling[f][id]
			if !ok {
				continue
			}
			if f == model.FamilyComponentProgress {
				if reason, err := e.drainOwn(id, c); err != nil {
					e.teardown(id, reason, err)
					break
				}
				continue
			}
			if err := e.drainShared(f, id, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// drainOwn replays a component's own progress messages. Any failure is
// component-local.
func (e *Engine) drainOwn(id model.ImmutableID, c component.Component) (string, error) {
	f := model.FamilyComponentProgress
	msgs, err := drainFamily(c, f)
	if err != nil {
		return ReasonDrainPanic, err
	}
	h := e.handlers[f]
	for _, msg := range msgs {
		// CRITICAL: a component may only write its own progress.
		if msg.ComponentID != id {
			e.observer.ObserveMessage(f, false)
			return ReasonSpoofedMessage, fmt.Errorf("message claims sender %d", msg.ComponentID)
		}
		if err := handle(h, msg); err != nil {
			e.observer.ObserveMessage(f, false)
			return ReasonHandlerRejected, err
		}
		e.observer.ObserveMessage(f, true)
	}
	return "", nil
}

// drainShared replays messages targeting shared state. Any failure is fatal.
func (e *Engine) drainShared(f model.Family, id model.ImmutableID, c component.Component) error {
	msgs, err := drainFamily(c, f)
	if err != nil {
		return &RuntimeError{Code: ErrCodeHandlerFailed, Message: "drain panicked", Family: f, ComponentID: id, Err: err}
	}
	h := e.handlers[f]
	for _, msg := range msgs {
		if err := handle(h, msg); err != nil {
			e.observer.ObserveMessage(f, false)
			return &RuntimeError{
				Code:        ErrCodeHandlerFailed,
				Message:     fmt.Sprintf("replay %s", msg.Method),
				Family:      f,
				ComponentID: id,
				Err:         err,
			}
		}
		e.observer.ObserveMessage(f, true)
	}
	return nil
}

func drainFamily(c component.Component, f model.Family) (msgs []model.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msgs, err = nil, fmt.Errorf("drain %s panicked: %v", f, r)
		}
	}()
	switch f {
	case model.FamilyComponentProgress:
		return c.ComponentProgressMessages(), nil
	case model.FamilyOverallProgress:
		return c.OverallProgressMessages(), nil
	case model.FamilyNavigation:
		return c.NavigationMessages(), nil
	case model.FamilySettings:
		return c.SettingsMessages(), nil
	default:
		return nil, fmt.Errorf("unknown family %s", f)
	}
}

func handle(h message.Handler, msg model.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked on %s: %v", msg.Method, r)
		}
	}()
	return h.Handle(msg)
}

func (e *Engine) teardown(id model.ImmutableID, reason string, cause error) {
	e.logger.Error("component torn down",
		"component_id", id,
		"reason", reason,
		"error", cause)
	e.set.Remove(id, e.logger)
	e.observer.ObserveTeardown(reason)
}

// selfCheck snapshots the managers and requires the integrity engine to
// return the snapshot unchanged.
func (e *Engine) selfCheck() ([]byte, error) {
	payload, err := e.state.Snapshot().Canonical()
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeSelfCheckFailed, Message: "encode snapshot", Err: err}
	}
	res, err := integrity.Recover(payload, e.state.Owner, e.reg)
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeSelfCheckFailed, Message: "recover snapshot", Err: err}
	}
	if !res.PerfectlyValidInput {
		return nil, &RuntimeError{Code: ErrCodeSelfCheckFailed, Message: imperfections(res)}
	}
	return payload, nil
}

func imperfections(res integrity.Result) string {
	var parts []string
	if res.ParseFailed {
		parts = append(parts, "unparseable")
	}
	if res.Critical.IdentityMismatch {
		parts = append(parts, "identity mismatch")
	}
	for _, s := range integrity.Sections {
		m := res.Sections[s]
		if !m.StrictValid || !m.Clean() {
			parts = append(parts, fmt.Sprintf("%s not clean", s))
		}
	}
	if len(res.UnknownKeys) > 0 {
		parts = append(parts, fmt.Sprintf("unknown keys %v", res.UnknownKeys))
	}
	if len(parts) == 0 {
		return "snapshot not perfectly valid"
	}
	return "snapshot not perfectly valid: " + strings.Join(parts, ", ")
}

// handOff queues the payload if it changed since the previous tick or the
// persist interval elapsed since the last hand-off.
func (e *Engine) handOff(payload []byte) {
	now := e.clock.Now()
	changed := !bytes.Equal(payload, e.lastPayload)
	due := !e.lastHandoff.IsZero() && now.Sub(e.lastHandoff) >= e.persistInterval
	e.lastPayload = payload

	if e.sink == nil || (!changed && !due) {
		return
	}
	e.sink.Queue(payload)
	e.lastHandoff = now
	e.observer.ObserveHandoff()
	e.logger.Debug("snapshot handed off",
		"bytes", len(payload),
		"changed", changed,
		"digest", model.Digest(payload))
}

// Snapshot returns a copy of the current state.
// Must be called from the goroutine that calls Tick.
func (e *Engine) Snapshot() model.Bundle {
	return e.state.Snapshot()
}

// ActiveComponents returns the live component ids in display order.
// Must be called from the goroutine that calls Tick.
func (e *Engine) ActiveComponents() []model.ImmutableID {
	if e.set == nil {
		return nil
	}
	return slices.Clone(e.set.Order)
}

// Polled reports whether component id is polled for family f.
// Must be called from the goroutine that calls Tick.
func (e *Engine) Polled(id model.ImmutableID, f model.Family) bool {
	if e.set == nil {
		return false
	}
	_, ok := e.set.Polling[f][id]
	return ok
}

// View returns the page the live component set was built for.
func (e *Engine) View() model.NavigationState {
	return e.view
}

// Ticks returns the number of ticks run.
func (e *Engine) Ticks() int64 {
	return e.ticks
}
