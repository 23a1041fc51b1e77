// Package merge combines two independently valid bundles of the same owner,
// for example a local cache that was written offline and the remote store.
//
// Every section is reconciled by the trump tables its manager or component
// kind declares. Merge never drops data that only one side has; dropping
// retired content is the integrity engine's job.
package merge

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

// OrderingHints break ties that the trump tables leave open.
type OrderingHints struct {
	// PreferOnTie picks a side when timestamps and progress are equal.
	PreferOnTie trump.Side
}

// ConflictError means the two bundles cannot be merged.
type ConflictError struct {
	Section string
	Field   string
	Reason  string
}

func (e *ConflictError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("merge conflict in %s.%s: %s", e.Section, e.Field, e.Reason)
	}
	return fmt.Sprintf("merge conflict in %s: %s", e.Section, e.Reason)
}

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Report lists merge decisions worth surfacing.
type Report struct {
	// Fallbacks are components whose declared table could not be applied
	// and were resolved by the completeness heuristic.
	Fallbacks []model.ImmutableID
}

// Merge combines a and b. Both must already be valid for reg.
func Merge(a, b model.Bundle, hints OrderingHints, reg curriculum.Registry) (model.Bundle, error) {
	out, _, err := MergeWithReport(a, b, hints, reg)
	return out, err
}

// MergeWithReport is Merge plus a report of heuristic fallbacks.
func MergeWithReport(a, b model.Bundle, hints OrderingHints, reg curriculum.Registry) (model.Bundle, Report, error) {
	var report Report
	prefer := hints.PreferOnTie

	if _, err := trump.Resolve(trump.AssertEqual, model.String(a.Metadata.Owner), model.String(b.Metadata.Owner), prefer); err != nil {
		return model.Bundle{}, report, &ConflictError{Section: "metadata", Field: "owner", Reason: "bundles belong to different owners"}
	}

	out := model.Bundle{Metadata: a.Metadata}

	conflicts, err := trump.MergeStruct(manager.OverallProgressTrump, a.OverallProgress, b.OverallProgress, prefer, &out.OverallProgress)
	if err := sectionError("overallProgress", conflicts, err); err != nil {
		return model.Bundle{}, report, err
	}
	out.OverallProgress = out.OverallProgress.Clone()
	out.OverallProgress.Recount()

	conflicts, err = trump.MergeStruct(manager.SettingsTrump, a.Settings, b.Settings, prefer, &out.Settings)
	if err := sectionError("settings", conflicts, err); err != nil {
		return model.Bundle{}, report, err
	}

	conflicts, err = trump.MergeStruct(manager.NavigationTrump, a.NavigationState, b.NavigationState, prefer, &out.NavigationState)
	if err := sectionError("navigationState", conflicts, err); err != nil {
		return model.Bundle{}, report, err
	}

	out.ComponentProgress = make(map[model.ImmutableID]model.Object, len(a.ComponentProgress))
	for id, pa := range a.ComponentProgress {
		pb, both := b.ComponentProgress[id]
		if !both {
			out.ComponentProgress[id] = pa.Clone()
			continue
		}
		merged, ok := mergeComponent(id, pa, pb, prefer, reg)
		if !ok {
			report.Fallbacks = append(report.Fallbacks, id)
		}
		out.ComponentProgress[id] = merged
	}
	for id, pb := range b.ComponentProgress {
		if _, ok := out.ComponentProgress[id]; !ok {
			out.ComponentProgress[id] = pb.Clone()
		}
	}
	slices.Sort(report.Fallbacks)
	return out, report, nil
}

// mergeComponent applies the kind's table and then lets the kind recompute
// derived fields. If the table cannot be applied, or the result is still
// progress the kind rejects, the side with more progress wins whole. The
// second result is false when that fallback was used.
func mergeComponent(id model.ImmutableID, a, b model.Object, prefer trump.Side, reg curriculum.Registry) (model.Object, bool) {
	if kind, ok := reg.ComponentType(id); ok {
		if def, ok := kinds.Lookup(kind); ok {
			merged, conflicts := trump.Apply(def.Trump, a, b, prefer)
			cfg, _ := reg.ComponentConfig(id)
			if len(conflicts) == 0 && def.Normalize != nil {
				merged = def.Normalize(merged, cfg)
			}
			if len(conflicts) == 0 && def.ValidateProgress(merged, cfg) == nil {
				return merged, true
			}
		}
	}
	return byCompleteness(a, b, prefer), false
}

func byCompleteness(a, b model.Object, prefer trump.Side) model.Object {
	ca, cb := trump.Completeness(a), trump.Completeness(b)
	switch {
	case ca > cb:
		return a.Clone()
	case cb > ca:
		return b.Clone()
	case prefer == trump.SideB:
		return b.Clone()
	default:
		return a.Clone()
	}
}

func sectionError(section string, conflicts []*trump.ConflictError, err error) error {
	if err != nil {
		return &ConflictError{Section: section, Reason: err.Error()}
	}
	if len(conflicts) == 0 {
		return nil
	}
	reasons := make([]string, len(conflicts))
	for i, c := range conflicts {
		reasons[i] = c.Error()
	}
	return &ConflictError{Section: section, Field: conflicts[0].Field, Reason: strings.Join(reasons, "; ")}
}
