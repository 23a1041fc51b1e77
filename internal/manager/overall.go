package manager

import (
	"slices"

	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

const overallName = "overall_progress"

// OverallProgressTrump reconciles two copies of overall progress. Totals are
// recomputed after every merge so their MAX only matters for the transient
// merged value.
var OverallProgressTrump = trump.Table{
	"lessonCompletions":     trump.LatestTimestamp,
	"domainCompletions":     trump.LatestTimestamp,
	"currentStreak":         trump.MAX,
	"lastStreakCheck":       trump.MAX,
	"totalLessonsCompleted": trump.MAX,
	"totalDomainsCompleted": trump.MAX,
}

// OverallProgressManager owns lesson and domain completion state.
//
// Completing or un-completing a lesson rolls up into its domains: a domain is
// complete exactly while every lesson registered in it is complete.
type OverallProgressManager struct {
	reg  curriculum.Registry
	data model.OverallProgress
}

// NewOverallProgressManager takes a deep copy of data.
func NewOverallProgressManager(reg curriculum.Registry, data model.OverallProgress) *OverallProgressManager {
	d := data.Clone()
	d.Recount()
	return &OverallProgressManager{reg: reg, data: d}
}

// Snapshot returns a deep copy of the current state.
func (m *OverallProgressManager) Snapshot() model.OverallProgress {
	return m.data.Clone()
}

// IsLessonComplete reports whether lesson id is currently complete.
func (m *OverallProgressManager) IsLessonComplete(id model.ImmutableID) bool {
	return m.data.LessonCompletions[id].IsComplete()
}

// IsDomainComplete reports whether domain id is currently complete.
func (m *OverallProgressManager) IsDomainComplete(id model.ImmutableID) bool {
	return m.data.DomainCompletions[id].IsComplete()
}

// ValidateLesson checks that id names a registered lesson.
func ValidateLesson(reg curriculum.Registry, op string, id model.ImmutableID) error {
	if !reg.HasLesson(id) {
		return invalid(overallName, op, "lesson %d is not registered", id)
	}
	return nil
}

// ValidateDomain checks that id names a registered domain.
func ValidateDomain(reg curriculum.Registry, op string, id model.ImmutableID) error {
	if !reg.HasDomain(id) {
		return invalid(overallName, op, "domain %d is not registered", id)
	}
	return nil
}

// MarkLessonComplete completes a lesson. Completing an already complete
// lesson keeps the original completion time.
func (m *OverallProgressManager) MarkLessonComplete(id model.ImmutableID, now int64) error {
	if err := ValidateLesson(m.reg, "markLessonComplete", id); err != nil {
		return err
	}
	if m.IsLessonComplete(id) {
		return nil
	}
	m.data.LessonCompletions[id] = model.Completed(now)
	m.updateStreak(now)
	m.rollup(id, now)
	m.data.Recount()
	return nil
}

// MarkLessonIncomplete clears a lesson's completion, keeping the entry so its
// lastUpdated wins over older completions during merge.
func (m *OverallProgressManager) MarkLessonIncomplete(id model.ImmutableID, now int64) error {
	if err := ValidateLesson(m.reg, "markLessonIncomplete", id); err != nil {
		return err
	}
	if !m.IsLessonComplete(id) {
		return nil
	}
	m.data.LessonCompletions[id] = model.Incomplete(now)
	m.rollup(id, now)
	m.data.Recount()
	return nil
}

// MarkDomainComplete completes a domain explicitly.
func (m *OverallProgressManager) MarkDomainComplete(id model.ImmutableID, now int64) error {
	if err := ValidateDomain(m.reg, "markDomainComplete", id); err != nil {
		return err
	}
	if !m.IsDomainComplete(id) {
		m.data.DomainCompletions[id] = model.Completed(now)
		m.data.Recount()
	}
	return nil
}

// MarkDomainIncomplete clears a domain's completion.
func (m *OverallProgressManager) MarkDomainIncomplete(id model.ImmutableID, now int64) error {
	if err := ValidateDomain(m.reg, "markDomainIncomplete", id); err != nil {
		return err
	}
	if m.IsDomainComplete(id) {
		m.data.DomainCompletions[id] = model.Incomplete(now)
		m.data.Recount()
	}
	return nil
}

// rollup recomputes the completion of every domain containing lesson.
func (m *OverallProgressManager) rollup(lesson model.ImmutableID, now int64) {
	for _, domain := range m.reg.AllDomainIDs() {
		lessons := m.reg.LessonsInDomain(domain)
		if !slices.Contains(lessons, lesson) {
			continue
		}
		all := true
		for _, l := range lessons {
			if !m.IsLessonComplete(l) {
				all = false
				break
			}
		}
		switch done := m.IsDomainComplete(domain); {
		case all && !done:
			m.data.DomainCompletions[domain] = model.Completed(now)
		case !all && done:
			m.data.DomainCompletions[domain] = model.Incomplete(now)
		}
	}
}
