package integrity

import (
	"encoding/json"
	"fmt"

	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/model"
)

// assertBundle checks an assembled bundle against the full schema and the
// registry. Any failure is a *DefectError.
func assertBundle(schema *bundleSchema, b model.Bundle, reg curriculum.Registry) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return &DefectError{Reason: fmt.Sprintf("encode bundle: %v", err)}
	}
	if err := schema.validate(defBundle, raw); err != nil {
		return &DefectError{Reason: fmt.Sprintf("bundle fails schema: %v", err)}
	}
	if err := model.ValidateSettings(b.Settings); err != nil {
		return &DefectError{Reason: fmt.Sprintf("settings: %v", err)}
	}

	p := b.OverallProgress
	if p.TotalLessonsCompleted != model.CountCompleted(p.LessonCompletions) ||
		p.TotalDomainsCompleted != model.CountCompleted(p.DomainCompletions) {
		return &DefectError{Reason: "completion totals disagree with completion maps"}
	}
	if err := sameIDs("lessonCompletions", model.SortedIDs(p.LessonCompletions), reg.AllLessonIDs()); err != nil {
		return err
	}
	if err := sameIDs("domainCompletions", model.SortedIDs(p.DomainCompletions), reg.AllDomainIDs()); err != nil {
		return err
	}

	nav := b.NavigationState
	if !curriculum.ValidPosition(reg, nav.CurrentEntityID, nav.CurrentPage) {
		return &DefectError{Reason: fmt.Sprintf("navigation points at entity %d page %d", nav.CurrentEntityID, nav.CurrentPage)}
	}

	if err := sameIDs("componentProgress", b.ComponentIDs(), reg.AllComponentIDs()); err != nil {
		return err
	}
	for id, progress := range b.ComponentProgress {
		kind, _ := reg.ComponentType(id)
		def, ok := kinds.Lookup(kind)
		if !ok {
			return &DefectError{Reason: fmt.Sprintf("component %d has no kind definition", id)}
		}
		cfg, _ := reg.ComponentConfig(id)
		if err := def.ValidateProgress(progress, cfg); err != nil {
			return &DefectError{Reason: fmt.Sprintf("component %d: %v", id, err)}
		}
	}
	return nil
}

func sameIDs(section string, got, want []model.ImmutableID) error {
	if len(got) != len(want) {
		return &DefectError{Reason: fmt.Sprintf("%s has %d entries, registry has %d", section, len(got), len(want))}
	}
	for i := range got {
		if got[i] != want[i] {
			return &DefectError{Reason: fmt.Sprintf("%s entry %d does not match registry id %d", section, got[i], want[i])}
		}
	}
	return nil
}
