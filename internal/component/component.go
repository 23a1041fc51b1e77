// Package component hosts lesson components. A component sees only a
// SECONDARY progress manager and its own queue managers; the runtime polls
// the queues it is permitted to use and replays them onto the primary
// managers.
package component

import (
	"log/slog"

	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/message"
	"github.com/mera-platform/mera/internal/model"
)

// Component is a live instance placed on the current page.
//
// All methods are called on the engine goroutine.
type Component interface {
	ID() model.ImmutableID
	Kind() kinds.Kind

	// Interact delivers a UI event such as a click.
	Interact(action string, args model.Object) error

	// Each drains the component's queue for one family.
	ComponentProgressMessages() []model.Message
	OverallProgressMessages() []model.Message
	NavigationMessages() []model.Message
	SettingsMessages() []model.Message

	Destroy()
}

// Deps is everything a constructor may use.
type Deps struct {
	ID       model.ImmutableID
	Kind     kinds.Kind
	Config   model.Object
	Registry curriculum.Registry
	Clock    clock.Clock
	Logger   *slog.Logger

	// Secondary is a deep copy of the primary manager, owned by the component.
	Secondary *manager.ComponentProgressManager

	Progress   *message.ComponentProgressQueue
	Overall    *message.OverallProgressQueue
	Navigation *message.NavigationQueue
	Settings   *message.SettingsQueue
}

// Constructor builds a component. It may return an error or panic; either
// way the component is skipped.
type Constructor func(Deps) (Component, error)

// Base implements the queue plumbing shared by every kind. Concrete kinds
// embed it and implement Interact.
type Base struct {
	Deps
	destroyed bool
}

func NewBase(d Deps) Base {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return Base{Deps: d}
}

func (b *Base) ID() model.ImmutableID { return b.Deps.ID }
func (b *Base) Kind() kinds.Kind      { return b.Deps.Kind }

func (b *Base) ComponentProgressMessages() []model.Message { return b.Progress.Drain() }
func (b *Base) OverallProgressMessages() []model.Message   { return b.Overall.Drain() }
func (b *Base) NavigationMessages() []model.Message        { return b.Navigation.Drain() }
func (b *Base) SettingsMessages() []model.Message          { return b.Settings.Drain() }

// Destroy drops undrained messages.
func (b *Base) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	for _, q := range []interface{ Drain() []model.Message }{b.Progress, b.Overall, b.Navigation, b.Settings} {
		if n := len(q.Drain()); n > 0 {
			b.Logger.Debug("dropped undrained messages", "component_id", b.Deps.ID, "count", n)
		}
	}
}

// Mutate applies a kind method to the secondary manager and submits the same
// call for replay on the primary.
func (b *Base) Mutate(method string, args model.Object) error {
	if err := b.Progress.Submit(method, args); err != nil {
		return err
	}
	return b.Secondary.Apply(method, args)
}

// Now returns the component clock in unix milliseconds.
func (b *Base) Now() int64 {
	return clock.Millis(b.Clock)
}
