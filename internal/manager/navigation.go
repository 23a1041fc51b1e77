package manager

import (
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

const navigationName = "navigation"

// NavigationTrump takes the whole position from the more recent copy.
var NavigationTrump = trump.Table{trump.Whole: trump.LatestTimestamp}

// NavigationManager owns the learner's current position.
type NavigationManager struct {
	reg  curriculum.Registry
	data model.NavigationState
}

// NewNavigationManager copies nav. An invalid position is replaced by the
// registry default so the runtime always starts somewhere real.
func NewNavigationManager(reg curriculum.Registry, nav model.NavigationState) *NavigationManager {
	if !curriculum.ValidPosition(reg, nav.CurrentEntityID, nav.CurrentPage) {
		nav = curriculum.DefaultNavigation(reg)
	}
	return &NavigationManager{reg: reg, data: nav}
}

// Current returns the current position.
func (m *NavigationManager) Current() model.NavigationState {
	return m.data
}

// ValidateView checks that entity/page names an existing page.
func ValidateView(reg curriculum.Registry, entity model.ImmutableID, page int64) error {
	if !reg.HasEntity(entity) {
		return invalid(navigationName, "setCurrentView", "entity %d is not registered", entity)
	}
	if !curriculum.ValidPosition(reg, entity, page) {
		return invalid(navigationName, "setCurrentView", "entity %d has no page %d", entity, page)
	}
	return nil
}

// SetCurrentView moves to entity/page.
func (m *NavigationManager) SetCurrentView(entity model.ImmutableID, page int64, now int64) error {
	if err := ValidateView(m.reg, entity, page); err != nil {
		return err
	}
	m.data = model.NavigationState{CurrentEntityID: entity, CurrentPage: page, LastUpdated: now}
	return nil
}

// NextPage moves one page forward within the current entity.
func (m *NavigationManager) NextPage(now int64) error {
	pages, _ := m.reg.EntityPageCount(m.data.CurrentEntityID)
	if m.data.CurrentPage+1 >= pages {
		return invalid(navigationName, "nextPage", "already on the last page of entity %d", m.data.CurrentEntityID)
	}
	m.data.CurrentPage++
	m.data.LastUpdated = now
	return nil
}

// PreviousPage moves one page back within the current entity.
func (m *NavigationManager) PreviousPage(now int64) error {
	if m.data.CurrentPage == 0 {
		return invalid(navigationName, "previousPage", "already on the first page of entity %d", m.data.CurrentEntityID)
	}
	m.data.CurrentPage--
	m.data.LastUpdated = now
	return nil
}
