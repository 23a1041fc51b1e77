package merge

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/integrity"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/testutil"
	"github.com/mera-platform/mera/internal/trump"
)

const owner = "alice"

func canonical(t *testing.T, b model.Bundle) string {
	t.Helper()
	raw, err := b.Canonical()
	require.NoError(t, err)
	return string(raw)
}

// randomBundle drives the managers with random valid calls.
func randomBundle(t *testing.T, reg curriculum.Registry, rng *rand.Rand) model.Bundle {
	t.Helper()
	state, err := manager.NewState(reg, integrity.DefaultBundle(owner, reg))
	require.NoError(t, err)

	now := int64(1_700_000_000_000)
	lessons := reg.AllLessonIDs()
	for i := 0; i < 12; i++ {
		now += int64(rng.Intn(3)) * 60_000
		switch rng.Intn(6) {
		case 0:
			_ = state.Overall.MarkLessonComplete(lessons[rng.Intn(len(lessons))], now)
		case 1:
			_ = state.Overall.MarkLessonIncomplete(lessons[rng.Intn(len(lessons))], now)
		case 2:
			_ = state.Settings.Set(model.SettingTheme, model.String([]string{"light", "dark", "auto"}[rng.Intn(3)]), now)
		case 3:
			_ = state.Navigation.SetCurrentView(lessons[rng.Intn(2)], 0, now)
		case 4:
			task, _ := state.Components.Primary(testutil.WelcomeTask)
			_ = task.Apply("setCheckbox", model.NewObject(
				model.O("index", model.Int(rng.Intn(2))),
				model.O("checked", model.Bool(rng.Intn(2) == 0)),
			))
		case 5:
			text, _ := state.Components.Primary(testutil.WelcomeText)
			_ = text.Apply("visitSection", model.NewObject(model.O("section", model.Int(rng.Intn(2)))))
			_ = text.Apply("setNote", model.NewObject(model.O("note", model.String(fmt.Sprintf("n%d", rng.Intn(3))))))
		}
	}
	return state.Snapshot()
}

func TestMerge_CompletionOnOneSideSurvives(t *testing.T) {
	reg := testutil.Registry(t)
	a := integrity.DefaultBundle(owner, reg)
	a.OverallProgress.LessonCompletions[100] = model.Completed(1000)
	a.OverallProgress.Recount()

	b := integrity.DefaultBundle(owner, reg)
	delete(b.OverallProgress.LessonCompletions, 100)

	merged, err := Merge(a, b, OrderingHints{}, reg)
	require.NoError(t, err)
	got := merged.OverallProgress.LessonCompletions[100]
	require.True(t, got.IsComplete())
	assert.Equal(t, int64(1000), *got.TimeCompleted)
	assert.Equal(t, int64(1), merged.OverallProgress.TotalLessonsCompleted)

	// And the other way round.
	merged, err = Merge(b, a, OrderingHints{PreferOnTie: trump.SideB}, reg)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), *merged.OverallProgress.LessonCompletions[100].TimeCompleted)
}

func TestMerge_LaterToggleWins(t *testing.T) {
	reg := testutil.Registry(t)
	a := integrity.DefaultBundle(owner, reg)
	a.OverallProgress.LessonCompletions[100] = model.Completed(1000)
	b := integrity.DefaultBundle(owner, reg)
	b.OverallProgress.LessonCompletions[100] = model.Incomplete(2000)

	merged, err := Merge(a, b, OrderingHints{}, reg)
	require.NoError(t, err)
	assert.Equal(t, model.Incomplete(2000), merged.OverallProgress.LessonCompletions[100])
	assert.Equal(t, int64(0), merged.OverallProgress.TotalLessonsCompleted)
}

func TestMerge_OwnerMustMatch(t *testing.T) {
	reg := testutil.Registry(t)
	_, err := Merge(integrity.DefaultBundle("alice", reg), integrity.DefaultBundle("bob", reg), OrderingHints{}, reg)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "metadata.owner")
}

func TestMerge_SettingsAndNavigationMoveAsAUnit(t *testing.T) {
	reg := testutil.Registry(t)
	a := integrity.DefaultBundle(owner, reg)
	a.Settings = model.Settings{Theme: "dark", Language: "en", FontSize: "medium", LastUpdated: 500}
	a.NavigationState = model.NavigationState{CurrentEntityID: 100, CurrentPage: 1, LastUpdated: 100}

	b := integrity.DefaultBundle(owner, reg)
	b.Settings = model.Settings{Theme: "auto", Language: "fr", FontSize: "large", ReducedMotion: true, LastUpdated: 400}
	b.NavigationState = model.NavigationState{CurrentEntityID: 101, CurrentPage: 0, LastUpdated: 200}

	merged, err := Merge(a, b, OrderingHints{}, reg)
	require.NoError(t, err)
	assert.Equal(t, a.Settings, merged.Settings, "no cherry-picking across copies")
	assert.Equal(t, b.NavigationState, merged.NavigationState)
}

func TestMerge_TieUsesHint(t *testing.T) {
	reg := testutil.Registry(t)
	a := integrity.DefaultBundle(owner, reg)
	a.Settings.Theme = "dark"
	a.Settings.LastUpdated = 7
	b := integrity.DefaultBundle(owner, reg)
	b.Settings.Theme = "light"
	b.Settings.LastUpdated = 7

	merged, err := Merge(a, b, OrderingHints{PreferOnTie: trump.SideA}, reg)
	require.NoError(t, err)
	assert.Equal(t, "dark", merged.Settings.Theme)

	merged, err = Merge(a, b, OrderingHints{PreferOnTie: trump.SideB}, reg)
	require.NoError(t, err)
	assert.Equal(t, "light", merged.Settings.Theme)
}

func TestMerge_ComponentProgressUsesKindTable(t *testing.T) {
	reg := testutil.Registry(t)
	a := integrity.DefaultBundle(owner, reg)
	b := integrity.DefaultBundle(owner, reg)

	a.ComponentProgress[testutil.WelcomeText] = model.NewObject(
		model.O("read", model.Bool(false)),
		model.O("visitedSections", model.Array{model.Int(1)}),
		model.O("note", model.String("")),
	)
	b.ComponentProgress[testutil.WelcomeText] = model.NewObject(
		model.O("read", model.Bool(true)),
		model.O("visitedSections", model.Array{model.Int(0)}),
		model.O("note", model.String("remember this")),
	)
	a.ComponentProgress[testutil.StartButton] = model.NewObject(model.O("clicked", model.Bool(true)), model.O("lastClicked", model.Int(90)))
	b.ComponentProgress[testutil.StartButton] = model.NewObject(model.O("clicked", model.Bool(false)), model.O("lastClicked", model.Int(0)))

	merged, report, err := MergeWithReport(a, b, OrderingHints{}, reg)
	require.NoError(t, err)
	assert.Empty(t, report.Fallbacks)

	text := merged.ComponentProgress[testutil.WelcomeText]
	assert.Equal(t, model.Bool(true), text["read"])
	assert.Equal(t, model.Array{model.Int(0), model.Int(1)}, text["visitedSections"])
	assert.Equal(t, model.String("remember this"), text["note"])

	button := merged.ComponentProgress[testutil.StartButton]
	assert.Equal(t, model.Bool(true), button["clicked"])
	assert.Equal(t, model.Int(90), button["lastClicked"])
}

func TestMerge_ComponentKeepsUnionOfCheckboxes(t *testing.T) {
	reg := testutil.Registry(t)
	a := integrity.DefaultBundle(owner, reg)
	b := integrity.DefaultBundle(owner, reg)

	// Each side checked a different box of a two-of-two task. Neither side
	// is complete on its own; the union is.
	a.ComponentProgress[testutil.WelcomeTask] = model.NewObject(
		model.O("checkboxStates", model.Array{model.Bool(true), model.Bool(false)}),
		model.O("complete", model.Bool(false)),
		model.O("attempts", model.Int(1)),
		model.O("pristine", model.Bool(false)),
	)
	b.ComponentProgress[testutil.WelcomeTask] = model.NewObject(
		model.O("checkboxStates", model.Array{model.Bool(false), model.Bool(true)}),
		model.O("complete", model.Bool(false)),
		model.O("attempts", model.Int(3)),
		model.O("pristine", model.Bool(false)),
	)

	merged, report, err := MergeWithReport(a, b, OrderingHints{}, reg)
	require.NoError(t, err)
	assert.Empty(t, report.Fallbacks)

	task := merged.ComponentProgress[testutil.WelcomeTask]
	assert.Equal(t, model.Array{model.Bool(true), model.Bool(true)}, task["checkboxStates"])
	assert.Equal(t, model.Bool(true), task["complete"])
	assert.Equal(t, model.Int(3), task["attempts"])

	res, err := integrity.Validate(merged, owner, reg)
	require.NoError(t, err)
	assert.True(t, res.PerfectlyValidInput)
}

func TestMerge_ComponentFallbackWhenTableResultIsInvalid(t *testing.T) {
	reg := testutil.Registry(t)
	a := integrity.DefaultBundle(owner, reg)
	b := integrity.DefaultBundle(owner, reg)

	// A checklist of the wrong length cannot be OR-ed element-wise into
	// anything the kind accepts, so the side with more progress wins whole.
	a.ComponentProgress[testutil.WelcomeTask] = model.NewObject(
		model.O("checkboxStates", model.Array{model.Bool(true)}),
		model.O("complete", model.Bool(false)),
		model.O("attempts", model.Int(1)),
		model.O("pristine", model.Bool(false)),
	)
	b.ComponentProgress[testutil.WelcomeTask] = model.NewObject(
		model.O("checkboxStates", model.Array{model.Bool(false), model.Bool(true)}),
		model.O("complete", model.Bool(false)),
		model.O("attempts", model.Int(3)),
		model.O("pristine", model.Bool(false)),
	)

	merged, report, err := MergeWithReport(a, b, OrderingHints{}, reg)
	require.NoError(t, err)
	assert.Equal(t, []model.ImmutableID{testutil.WelcomeTask}, report.Fallbacks)
	assert.Equal(t, b.ComponentProgress[testutil.WelcomeTask], merged.ComponentProgress[testutil.WelcomeTask],
		"more progress wins whole")
}

func TestMerge_Properties(t *testing.T) {
	reg := testutil.Registry(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		a := randomBundle(t, reg, rng)
		b := randomBundle(t, reg, rng)
		hints := OrderingHints{PreferOnTie: trump.Side(rng.Intn(2))}

		ab, err := Merge(a, b, hints, reg)
		require.NoError(t, err)

		again, err := Merge(ab, b, hints, reg)
		require.NoError(t, err)
		assert.Equal(t, canonical(t, ab), canonical(t, again), "merge(merge(A,B),B) == merge(A,B)")

		for _, side := range []model.Bundle{a, b} {
			for id, c := range side.OverallProgress.LessonCompletions {
				got, ok := ab.OverallProgress.LessonCompletions[id]
				require.True(t, ok, "lesson %d kept", id)
				assert.GreaterOrEqual(t, got.LastUpdated, c.LastUpdated)
			}
		}

		p := ab.OverallProgress
		assert.Equal(t, model.CountCompleted(p.LessonCompletions), p.TotalLessonsCompleted)

		res, err := integrity.Validate(ab, owner, reg)
		require.NoError(t, err)
		assert.True(t, res.PerfectlyValidInput, "merged bundle is valid: %+v", res.Sections)
	}
}
