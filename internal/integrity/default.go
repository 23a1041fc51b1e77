package integrity

import (
	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/model"
)

// DefaultBundle returns the fully populated starting bundle for a new
// learner: every registered lesson and domain incomplete, every component at
// its initial progress, default settings and the registry's default
// position. It passes Recover unchanged.
func DefaultBundle(owner string, reg curriculum.Registry) model.Bundle {
	b := model.NewBundle(owner)
	synthesize(b.OverallProgress.LessonCompletions, reg.AllLessonIDs())
	synthesize(b.OverallProgress.DomainCompletions, reg.AllDomainIDs())
	b.NavigationState = curriculum.DefaultNavigation(reg)
	for _, id := range reg.AllComponentIDs() {
		kind, _ := reg.ComponentType(id)
		cfg, _ := reg.ComponentConfig(id)
		b.ComponentProgress[id] = kinds.MustLookup(kind).Initial(cfg)
	}
	return b
}

// Validate is Recover for callers that already hold a bundle, such as the
// runtime self-check. It reports whether b would come through unchanged.
func Validate(b model.Bundle, expectedOwner string, reg curriculum.Registry) (Result, error) {
	raw, err := b.Canonical()
	if err != nil {
		return Result{}, &DefectError{Reason: err.Error()}
	}
	return Recover(raw, expectedOwner, reg)
}
