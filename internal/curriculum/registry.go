// Package curriculum is the read-only, build-time ground truth about content:
// which lessons, domains, menus and components exist, how many pages each
// entity has and what kind every component is.
//
// The registry is consulted by managers to validate mutations, by the
// instantiator to place components and by the integrity engine to drop
// retired content and synthesise missing content. It is never mutated after
// Build returns.
package curriculum

import (
	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/model"
)

// Registry answers questions about the deployed curriculum.
type Registry interface {
	HasLesson(id model.ImmutableID) bool
	HasDomain(id model.ImmutableID) bool
	// HasEntity reports whether id is a navigable menu or lesson.
	HasEntity(id model.ImmutableID) bool
	// EntityPageCount returns the number of pages of an entity.
	EntityPageCount(id model.ImmutableID) (int64, bool)

	AllLessonIDs() []model.ImmutableID
	AllDomainIDs() []model.ImmutableID
	AllComponentIDs() []model.ImmutableID

	ComponentType(id model.ImmutableID) (kinds.Kind, bool)
	ComponentConfig(id model.ImmutableID) (model.Object, bool)
	// LessonForComponent returns the lesson hosting a component. Components
	// placed on menus have no lesson.
	LessonForComponent(id model.ImmutableID) (model.ImmutableID, bool)
	// LessonsInDomain returns the lessons belonging to a domain.
	LessonsInDomain(id model.ImmutableID) []model.ImmutableID

	// ComponentsOnPage returns the components of one page in display order.
	ComponentsOnPage(entity model.ImmutableID, page int64) []Placement
	// DefaultEntity is where navigation starts and where it falls back to
	// when a stored position is no longer valid.
	DefaultEntity() model.ImmutableID
}

// Placement is a component positioned on a page.
type Placement struct {
	ID    model.ImmutableID
	Kind  kinds.Kind
	Order int
}

// ValidPosition reports whether entity/page names an existing page.
func ValidPosition(reg Registry, entity model.ImmutableID, page int64) bool {
	if !reg.HasEntity(entity) {
		return false
	}
	pages, ok := reg.EntityPageCount(entity)
	return ok && page >= 0 && page < pages
}

// DefaultNavigation returns the navigation state used when none is valid.
func DefaultNavigation(reg Registry) model.NavigationState {
	return model.NavigationState{CurrentEntityID: reg.DefaultEntity()}
}
