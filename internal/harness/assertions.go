package harness

import (
	"fmt"
	"slices"

	"github.com/mera-platform/mera/internal/model"
)

// EvaluateExpect checks a finished run against expect and returns one
// message per mismatch.
func EvaluateExpect(r *Result, expect Expect) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if r.Fatal != expect.Fatal {
		switch {
		case expect.Fatal == "":
			fail("run stopped: %s", r.Fatal)
		case r.Fatal == "":
			fail("expected fatal %s, run completed", expect.Fatal)
		default:
			fail("expected fatal %s, got %s", expect.Fatal, r.Fatal)
		}
	}

	overall := r.Bundle.OverallProgress
	if expect.LessonsCompleted != nil {
		if got := completedIDs(overall.LessonCompletions); !slices.Equal(got, sorted(expect.LessonsCompleted)) {
			fail("lessons completed: expected %v, got %v", sorted(expect.LessonsCompleted), got)
		}
	}
	if expect.DomainsCompleted != nil {
		if got := completedIDs(overall.DomainCompletions); !slices.Equal(got, sorted(expect.DomainsCompleted)) {
			fail("domains completed: expected %v, got %v", sorted(expect.DomainsCompleted), got)
		}
	}
	if expect.Streak != nil && overall.CurrentStreak != *expect.Streak {
		fail("streak: expected %d, got %d", *expect.Streak, overall.CurrentStreak)
	}

	if nav := expect.Navigation; nav != nil {
		got := r.Bundle.NavigationState
		if got.CurrentEntityID != nav.Entity || got.CurrentPage != nav.Page {
			fail("navigation: expected %d/%d, got %d/%d", nav.Entity, nav.Page, got.CurrentEntityID, got.CurrentPage)
		}
	}

	if expect.Active != nil && !slices.Equal(r.Active, expect.Active) {
		fail("active components: expected %v, got %v", expect.Active, r.Active)
	}

	if len(expect.Settings) > 0 {
		errs = append(errs, matchSubset("settings", settingsObject(r.Bundle.Settings), expect.Settings)...)
	}

	for _, id := range model.SortedIDs(expect.Components) {
		progress, ok := r.Bundle.ComponentProgress[id]
		if !ok {
			fail("component %d: no stored progress", id)
			continue
		}
		errs = append(errs, matchSubset(fmt.Sprintf("component %d", id), progress, expect.Components[id])...)
	}
	return errs
}

// matchSubset compares only the fields named in want.
func matchSubset(where string, got model.Object, want map[string]any) []string {
	var errs []string
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		w, err := model.FromAny(want[k])
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s.%s: bad expected value: %v", where, k, err))
			continue
		}
		g, ok := got[k]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s.%s: missing", where, k))
			continue
		}
		if !model.Equal(g, w) {
			errs = append(errs, fmt.Sprintf("%s.%s: expected %s, got %s", where, k, render(w), render(g)))
		}
	}
	return errs
}

func settingsObject(s model.Settings) model.Object {
	return model.NewObject(
		model.O(model.SettingTheme, model.String(s.Theme)),
		model.O(model.SettingLanguage, model.String(s.Language)),
		model.O(model.SettingFontSize, model.String(s.FontSize)),
		model.O(model.SettingReducedMotion, model.Bool(s.ReducedMotion)),
	)
}

func completedIDs(m map[model.ImmutableID]model.CompletionData) []model.ImmutableID {
	ids := []model.ImmutableID{}
	for _, id := range model.SortedIDs(m) {
		if m[id].IsComplete() {
			ids = append(ids, id)
		}
	}
	return ids
}

func sorted(ids []model.ImmutableID) []model.ImmutableID {
	out := slices.Clone(ids)
	slices.Sort(out)
	if out == nil {
		out = []model.ImmutableID{}
	}
	return out
}

func render(v model.Value) string {
	raw, err := model.Canonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
