package component

import (
	"fmt"
	"log/slog"

	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/message"
	"github.com/mera-platform/mera/internal/model"
)

// Set is the live component set of one page.
//
// INVARIANT: a component is in Polling[f] only if its kind is permitted to
// emit family f, and every component in any polling map is in Active.
type Set struct {
	// Order lists active components in display order.
	Order   []model.ImmutableID
	Active  map[model.ImmutableID]Component
	Polling map[model.Family]map[model.ImmutableID]Component
}

func newSet() *Set {
	s := &Set{
		Active:  make(map[model.ImmutableID]Component),
		Polling: make(map[model.Family]map[model.ImmutableID]Component),
	}
	for _, f := range model.Families {
		s.Polling[f] = make(map[model.ImmutableID]Component)
	}
	return s
}

// Len returns the number of active components.
func (s *Set) Len() int { return len(s.Active) }

// Remove tears down one component and drops it from every map.
func (s *Set) Remove(id model.ImmutableID, logger *slog.Logger) {
	c, ok := s.Active[id]
	if !ok {
		return
	}
	destroy(c, logger)
	delete(s.Active, id)
	for _, m := range s.Polling {
		delete(m, id)
	}
	for i, o := range s.Order {
		if o == id {
			s.Order = append(s.Order[:i:i], s.Order[i+1:]...)
			break
		}
	}
}

// DestroyAll tears down every component.
func (s *Set) DestroyAll(logger *slog.Logger) {
	for _, id := range append([]model.ImmutableID(nil), s.Order...) {
		s.Remove(id, logger)
	}
}

func destroy(c Component, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("component destroy panicked", "component_id", c.ID(), "panic", fmt.Sprint(r))
		}
	}()
	c.Destroy()
}

// Instantiator builds the component set of a page.
type Instantiator struct {
	reg       curriculum.Registry
	store     *manager.ComponentStore
	clock     clock.Clock
	seq       *clock.Sequence
	logger    *slog.Logger
	overrides map[kinds.Kind]Constructor
	perms     func(kinds.Kind) (kinds.Permissions, bool)
}

// InstantiatorOption configures an Instantiator.
type InstantiatorOption func(*Instantiator)

// WithConstructor replaces the constructor of one kind.
func WithConstructor(k kinds.Kind, ctor Constructor) InstantiatorOption {
	return func(i *Instantiator) {
		i.overrides[k] = ctor
	}
}

// WithPermissions replaces the permission table lookup.
func WithPermissions(lookup func(kinds.Kind) (kinds.Permissions, bool)) InstantiatorOption {
	return func(i *Instantiator) {
		i.perms = lookup
	}
}

// WithLogger sets the logger used for isolated component failures.
func WithLogger(l *slog.Logger) InstantiatorOption {
	return func(i *Instantiator) {
		i.logger = l
	}
}

// NewInstantiator returns an instantiator drawing primary managers from store.
func NewInstantiator(reg curriculum.Registry, store *manager.ComponentStore, c clock.Clock, seq *clock.Sequence, opts ...InstantiatorOption) *Instantiator {
	i := &Instantiator{
		reg:       reg,
		store:     store,
		clock:     c,
		seq:       seq,
		logger:    slog.Default(),
		overrides: make(map[kinds.Kind]Constructor),
		perms:     kinds.PermissionsFor,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// constructorFor is exhaustive over kinds.All.
func (i *Instantiator) constructorFor(k kinds.Kind) (Constructor, bool) {
	if ctor, ok := i.overrides[k]; ok {
		return ctor, true
	}
	switch k {
	case kinds.BasicTask:
		return NewBasicTask, true
	case kinds.TextBlock:
		return NewTextBlock, true
	case kinds.NavButton:
		return NewNavButton, true
	case kinds.SettingsPanel:
		return NewSettingsPanel, true
	default:
		return nil, false
	}
}

// Instantiate builds every component on entity/page in display order.
//
// A missing type, permission row, constructor or primary manager is a
// *DeploymentError and nothing is returned. A constructor that fails or
// panics is logged and skipped; its siblings are still built.
func (i *Instantiator) Instantiate(entity model.ImmutableID, page int64) (*Set, error) {
	set := newSet()
	for _, p := range i.reg.ComponentsOnPage(entity, page) {
		kind, ok := i.reg.ComponentType(p.ID)
		if !ok {
			set.DestroyAll(i.logger)
			return nil, &DeploymentError{ComponentID: p.ID, Reason: "no registered type"}
		}
		perms, ok := i.perms(kind)
		if !ok {
			set.DestroyAll(i.logger)
			return nil, &DeploymentError{ComponentID: p.ID, Reason: fmt.Sprintf("no permission row for %s", kind)}
		}
		ctor, ok := i.constructorFor(kind)
		if !ok {
			set.DestroyAll(i.logger)
			return nil, &DeploymentError{ComponentID: p.ID, Reason: fmt.Sprintf("no constructor for %s", kind)}
		}
		primary, ok := i.store.Primary(p.ID)
		if !ok {
			set.DestroyAll(i.logger)
			return nil, &DeploymentError{ComponentID: p.ID, Reason: "no primary progress manager"}
		}

		c, err := i.construct(ctor, p.ID, kind, primary)
		if err != nil {
			i.logger.Error("component construction failed, skipping",
				"component_id", p.ID,
				"kind", kind.String(),
				"error", err)
			continue
		}

		set.Active[p.ID] = c
		set.Order = append(set.Order, p.ID)
		for _, f := range model.Families {
			if perms.Allows(f) {
				set.Polling[f][p.ID] = c
			}
		}
	}
	i.logger.Debug("page instantiated", "entity_id", entity, "page", page, "components", set.Len())
	return set, nil
}

func (i *Instantiator) construct(ctor Constructor, id model.ImmutableID, kind kinds.Kind, primary *manager.ComponentProgressManager) (c Component, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("constructor panicked: %v", r)
		}
	}()

	secondary := primary.Clone()
	deps := Deps{
		ID:         id,
		Kind:       kind,
		Config:     secondary.Config(),
		Registry:   i.reg,
		Clock:      i.clock,
		Logger:     i.logger.With("component_id", id),
		Secondary:  secondary,
		Progress:   message.NewComponentProgressQueue(i.seq, secondary),
		Overall:    message.NewOverallProgressQueue(i.reg, i.seq, id),
		Navigation: message.NewNavigationQueue(i.reg, i.seq, id),
		Settings:   message.NewSettingsQueue(i.seq, id),
	}
	c, err = ctor(deps)
	if err == nil && c == nil {
		err = fmt.Errorf("constructor returned no component")
	}
	return c, err
}
