// Package manager holds the state managers: one owner per slice of the
// bundle, each mutated only through validated methods and read only through
// copying accessors.
//
// Managers are not safe for concurrent use. The engine goroutine is the only
// caller.
package manager

import (
	"fmt"

	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/model"
)

// State groups the managers of one session.
type State struct {
	Owner      string
	Overall    *OverallProgressManager
	Settings   *SettingsManager
	Navigation *NavigationManager
	Components *ComponentStore
}

// NewState builds every manager from a validated bundle. The bundle is
// deep-copied; later changes to b do not reach the managers.
func NewState(reg curriculum.Registry, b model.Bundle) (*State, error) {
	b = b.Clone()
	components, err := NewComponentStore(reg, b.ComponentProgress)
	if err != nil {
		return nil, fmt.Errorf("build component store: %w", err)
	}
	return &State{
		Owner:      b.Metadata.Owner,
		Overall:    NewOverallProgressManager(reg, b.OverallProgress),
		Settings:   NewSettingsManager(b.Settings),
		Navigation: NewNavigationManager(reg, b.NavigationState),
		Components: components,
	}, nil
}

// Snapshot assembles a full bundle from the managers.
func (s *State) Snapshot() model.Bundle {
	return model.Bundle{
		Metadata:          model.Metadata{Owner: s.Owner},
		OverallProgress:   s.Overall.Snapshot(),
		Settings:          s.Settings.Snapshot(),
		NavigationState:   s.Navigation.Current(),
		ComponentProgress: s.Components.Snapshot(),
	}
}
