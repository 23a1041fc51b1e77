package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/testutil"
)

func newOverall(t *testing.T) *OverallProgressManager {
	t.Helper()
	return NewOverallProgressManager(testutil.Registry(t), model.NewBundle("alice").OverallProgress)
}

func TestOverall_MarkLessonComplete(t *testing.T) {
	m := newOverall(t)

	require.NoError(t, m.MarkLessonComplete(testutil.LessonWelcome, 1000))
	assert.True(t, m.IsLessonComplete(testutil.LessonWelcome))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.TotalLessonsCompleted)
	assert.Equal(t, int64(1000), *snap.LessonCompletions[testutil.LessonWelcome].TimeCompleted)

	// Completing again keeps the original time.
	require.NoError(t, m.MarkLessonComplete(testutil.LessonWelcome, 5000))
	assert.Equal(t, int64(1000), *m.Snapshot().LessonCompletions[testutil.LessonWelcome].TimeCompleted)
}

func TestOverall_RejectsUnknownIDs(t *testing.T) {
	m := newOverall(t)

	err := m.MarkLessonComplete(999, 1)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "lesson 999 is not registered")

	assert.True(t, IsValidationError(m.MarkDomainComplete(testutil.LessonWelcome, 1)))
	assert.Equal(t, int64(0), m.Snapshot().TotalLessonsCompleted)
}

func TestOverall_DomainRollup(t *testing.T) {
	m := newOverall(t)

	require.NoError(t, m.MarkLessonComplete(testutil.LessonTools, 10))
	assert.True(t, m.IsDomainComplete(testutil.DomainTooling), "only lesson in domain")

	require.NoError(t, m.MarkLessonComplete(testutil.LessonWelcome, 20))
	assert.False(t, m.IsDomainComplete(testutil.DomainFoundations))

	require.NoError(t, m.MarkLessonComplete(testutil.LessonNext, 30))
	assert.True(t, m.IsDomainComplete(testutil.DomainFoundations))
	assert.Equal(t, int64(2), m.Snapshot().TotalDomainsCompleted)

	require.NoError(t, m.MarkLessonIncomplete(testutil.LessonNext, 40))
	assert.False(t, m.IsDomainComplete(testutil.DomainFoundations))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalLessonsCompleted)
	assert.Equal(t, int64(1), snap.TotalDomainsCompleted)
	assert.Equal(t, model.Incomplete(40), snap.DomainCompletions[testutil.DomainFoundations])
}

func TestOverall_ExplicitDomain(t *testing.T) {
	m := newOverall(t)

	require.NoError(t, m.MarkDomainComplete(testutil.DomainFoundations, 5))
	assert.True(t, m.IsDomainComplete(testutil.DomainFoundations))
	require.NoError(t, m.MarkDomainIncomplete(testutil.DomainFoundations, 6))
	assert.False(t, m.IsDomainComplete(testutil.DomainFoundations))
	assert.Equal(t, int64(0), m.Snapshot().TotalDomainsCompleted)
}

func TestOverall_SnapshotIsCopy(t *testing.T) {
	m := newOverall(t)
	require.NoError(t, m.MarkLessonComplete(testutil.LessonWelcome, 1000))

	snap := m.Snapshot()
	*snap.LessonCompletions[testutil.LessonWelcome].TimeCompleted = 1
	delete(snap.LessonCompletions, testutil.LessonWelcome)

	assert.True(t, m.IsLessonComplete(testutil.LessonWelcome))
	assert.Equal(t, int64(1000), *m.Snapshot().LessonCompletions[testutil.LessonWelcome].TimeCompleted)
}

func TestOverall_ConstructorRecountsTotals(t *testing.T) {
	p := model.NewBundle("alice").OverallProgress
	p.LessonCompletions[testutil.LessonWelcome] = model.Completed(1)
	p.TotalLessonsCompleted = 42

	m := NewOverallProgressManager(testutil.Registry(t), p)
	assert.Equal(t, int64(1), m.Snapshot().TotalLessonsCompleted)
	assert.Equal(t, int64(42), p.TotalLessonsCompleted, "input untouched")
}

func TestOverall_Streak(t *testing.T) {
	const day = int64(dayMillis)
	base := 19_000 * day // some UTC midnight

	tests := []struct {
		name       string
		streak     int64
		lastCheck  int64
		now        int64
		wantStreak int64
		wantCheck  int64
	}{
		{"first completion", 0, 0, base, 1, base},
		{"same day", 3, base + 10, base + 500, 3, base + 500},
		{"next day", 3, base + 10, base + day + 5, 4, base + day + 5},
		{"gap resets", 3, base, base + 3*day, 1, base + 3*day},
		{"clock went back", 3, base + day, base, 3, base + day},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.NewBundle("alice").OverallProgress
			p.CurrentStreak = tt.streak
			p.LastStreakCheck = tt.lastCheck
			m := NewOverallProgressManager(testutil.Registry(t), p)

			require.NoError(t, m.MarkLessonComplete(testutil.LessonWelcome, tt.now))
			snap := m.Snapshot()
			assert.Equal(t, tt.wantStreak, snap.CurrentStreak)
			assert.Equal(t, tt.wantCheck, snap.LastStreakCheck)
		})
	}
}
