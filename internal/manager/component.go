package manager

import (
	"fmt"

	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/model"
)

const componentName = "component_progress"

// ComponentProgressManager owns one component's progress payload.
//
// The store holds the PRIMARY manager of each component. Components only
// ever receive a SECONDARY manager built with Clone; their changes reach the
// primary by message replay.
type ComponentProgressManager struct {
	id       model.ImmutableID
	def      *kinds.Definition
	cfg      model.Object
	progress model.Object
}

// NewComponentProgressManager copies progress. The caller is responsible for
// progress having passed the kind's validation.
func NewComponentProgressManager(id model.ImmutableID, def *kinds.Definition, cfg, progress model.Object) *ComponentProgressManager {
	return &ComponentProgressManager{id: id, def: def, cfg: cfg.Clone(), progress: progress.Clone()}
}

func (m *ComponentProgressManager) ID() model.ImmutableID { return m.id }
func (m *ComponentProgressManager) Kind() kinds.Kind      { return m.def.Kind }

// Config returns a copy of the component's registry configuration.
func (m *ComponentProgressManager) Config() model.Object { return m.cfg.Clone() }

// Progress returns a deep copy of the current progress.
func (m *ComponentProgressManager) Progress() model.Object {
	return m.progress.Clone()
}

// HasMethod reports whether the kind declares method.
func (m *ComponentProgressManager) HasMethod(method string) bool {
	_, ok := m.def.Methods[method]
	return ok
}

// ValidateCall checks a method call without applying it.
func (m *ComponentProgressManager) ValidateCall(method string, args model.Object) error {
	if err := m.def.ValidateCall(method, args, m.cfg); err != nil {
		return invalid(componentName, method, "component %d: %v", m.id, err)
	}
	return nil
}

// Apply runs a kind method. The result must still satisfy the kind's
// progress validation; a method producing invalid progress is rejected and
// leaves the manager unchanged.
func (m *ComponentProgressManager) Apply(method string, args model.Object) error {
	next, err := m.def.ApplyMethod(method, m.progress, args, m.cfg)
	if err != nil {
		return invalid(componentName, method, "component %d: %v", m.id, err)
	}
	if err := m.def.ValidateProgress(next, m.cfg); err != nil {
		return invalid(componentName, method, "component %d produced invalid progress: %v", m.id, err)
	}
	m.progress = next
	return nil
}

// Clone returns an independent SECONDARY manager.
func (m *ComponentProgressManager) Clone() *ComponentProgressManager {
	return NewComponentProgressManager(m.id, m.def, m.cfg, m.progress)
}

// ComponentStore holds the PRIMARY progress manager of every registered
// component.
type ComponentStore struct {
	managers map[model.ImmutableID]*ComponentProgressManager
}

// NewComponentStore builds a primary manager for every registered component.
// Components without stored progress start from the kind's initializer.
// Stored progress for unregistered components is ignored.
func NewComponentStore(reg curriculum.Registry, progress map[model.ImmutableID]model.Object) (*ComponentStore, error) {
	s := &ComponentStore{managers: make(map[model.ImmutableID]*ComponentProgressManager)}
	for _, id := range reg.AllComponentIDs() {
		kind, ok := reg.ComponentType(id)
		if !ok {
			return nil, fmt.Errorf("component %d has no registered type", id)
		}
		def, ok := kinds.Lookup(kind)
		if !ok {
			return nil, fmt.Errorf("component %d: no definition for %s", id, kind)
		}
		cfg, _ := reg.ComponentConfig(id)
		p, ok := progress[id]
		if !ok {
			p = def.Initial(cfg)
		}
		s.managers[id] = NewComponentProgressManager(id, def, cfg, p)
	}
	return s, nil
}

// Primary returns the primary manager for id.
func (s *ComponentStore) Primary(id model.ImmutableID) (*ComponentProgressManager, bool) {
	m, ok := s.managers[id]
	return m, ok
}

// Snapshot returns a deep copy of every component's progress.
func (s *ComponentStore) Snapshot() map[model.ImmutableID]model.Object {
	out := make(map[model.ImmutableID]model.Object, len(s.managers))
	for id, m := range s.managers {
		out[id] = m.Progress()
	}
	return out
}
