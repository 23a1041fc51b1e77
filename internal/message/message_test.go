package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/testutil"
)

func newState(t *testing.T) *manager.State {
	t.Helper()
	s, err := manager.NewState(testutil.Registry(t), model.NewBundle("alice"))
	require.NoError(t, err)
	return s
}

func TestOverallProgressQueue_ValidatesBeforeEnqueue(t *testing.T) {
	seq := clock.NewSequence()
	q := NewOverallProgressQueue(testutil.Registry(t), seq, testutil.FinishButton)

	require.NoError(t, q.MarkLessonComplete(testutil.LessonWelcome))
	err := q.MarkLessonComplete(12345)
	require.Error(t, err)
	assert.True(t, manager.IsValidationError(err))
	require.NoError(t, q.MarkDomainComplete(testutil.DomainTooling))
	assert.Error(t, q.MarkDomainIncomplete(testutil.LessonWelcome))

	msgs := q.Drain()
	require.Len(t, msgs, 2)
	assert.Equal(t, MethodMarkLessonComplete, msgs[0].Method)
	assert.Equal(t, model.Int(testutil.LessonWelcome), msgs[0].Args["lessonId"])
	assert.Equal(t, model.ImmutableID(testutil.FinishButton), msgs[0].ComponentID)
	assert.Less(t, msgs[0].Seq, msgs[1].Seq)

	assert.Empty(t, q.Drain(), "drain empties the queue")
}

func TestHandlers_Replay(t *testing.T) {
	state := newState(t)
	c := testutil.NewFakeClock(time.Time{})
	handlers := Handlers(state, c)
	seq := clock.NewSequence()
	reg := testutil.Registry(t)

	overall := NewOverallProgressQueue(reg, seq, testutil.FinishButton)
	nav := NewNavigationQueue(reg, seq, testutil.FinishButton)
	settings := NewSettingsQueue(seq, testutil.SettingsPanel)

	require.NoError(t, overall.MarkLessonComplete(testutil.LessonWelcome))
	require.NoError(t, nav.SetCurrentView(testutil.LessonNext, 0))
	require.NoError(t, settings.Set(model.SettingTheme, model.String("dark")))

	for _, q := range []interface{ Drain() []model.Message }{overall, nav, settings} {
		for _, msg := range q.Drain() {
			require.NoError(t, handlers[msg.Family].Handle(msg))
		}
	}

	now := c.Millis()
	snap := state.Snapshot()
	assert.Equal(t, model.Completed(now), snap.OverallProgress.LessonCompletions[testutil.LessonWelcome])
	assert.Equal(t, model.NavigationState{CurrentEntityID: testutil.LessonNext, LastUpdated: now}, snap.NavigationState)
	assert.Equal(t, "dark", snap.Settings.Theme)
	assert.Equal(t, now, snap.Settings.LastUpdated)
}

func TestHandlers_RejectUnknownMethods(t *testing.T) {
	state := newState(t)
	handlers := Handlers(state, testutil.NewFakeClock(time.Time{}))

	for _, family := range model.Families {
		msg := model.Message{Family: family, ComponentID: testutil.WelcomeTask, Method: "dropTables", Args: model.Object{}}
		err := handlers[family].Handle(msg)
		require.Error(t, err, family.String())
		assert.True(t, IsUnknownMethod(err), "%s: %v", family, err)
	}
}

func TestHandlers_RevalidateArgs(t *testing.T) {
	state := newState(t)
	handlers := Handlers(state, testutil.NewFakeClock(time.Time{}))

	tests := []struct {
		name string
		msg  model.Message
	}{
		{"unregistered lesson", model.Message{
			Family: model.FamilyOverallProgress, Method: MethodMarkLessonComplete,
			Args: model.NewObject(model.O("lessonId", model.Int(555))),
		}},
		{"extra arg", model.Message{
			Family: model.FamilyOverallProgress, Method: MethodMarkLessonComplete,
			Args: model.NewObject(model.O("lessonId", model.Int(100)), model.O("force", model.Bool(true))),
		}},
		{"string id", model.Message{
			Family: model.FamilyOverallProgress, Method: MethodMarkDomainComplete,
			Args: model.NewObject(model.O("domainId", model.String("100000"))),
		}},
		{"page out of range", model.Message{
			Family: model.FamilyNavigation, Method: MethodSetCurrentView,
			Args: model.NewObject(model.O("entityId", model.Int(100)), model.O("page", model.Int(9))),
		}},
		{"previous on first page", model.Message{
			Family: model.FamilyNavigation, Method: MethodPreviousPage, Args: model.Object{},
		}},
		{"bad setting", model.Message{
			Family: model.FamilySettings, Method: MethodSetSetting,
			Args: model.NewObject(model.O("key", model.String("theme")), model.O("value", model.String("plaid"))),
		}},
		{"bad checkbox", model.Message{
			Family: model.FamilyComponentProgress, ComponentID: testutil.WelcomeTask, Method: "setCheckbox",
			Args: model.NewObject(model.O("index", model.Int(-1)), model.O("checked", model.Bool(true))),
		}},
		{"unknown component", model.Message{
			Family: model.FamilyComponentProgress, ComponentID: 1_234_567, Method: "setCheckbox",
		}},
	}

	before := state.Snapshot()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, handlers[tt.msg.Family].Handle(tt.msg))
		})
	}
	assert.Equal(t, before, state.Snapshot(), "rejected messages change nothing")
}

func TestHandler_WrongFamily(t *testing.T) {
	state := newState(t)
	h := NewSettingsHandler(state.Settings, clock.System{})
	err := h.Handle(model.Message{Family: model.FamilyNavigation, Method: MethodSetSetting})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings handler received navigation message")
}

func TestComponentProgressQueue_StampsSender(t *testing.T) {
	state := newState(t)
	primary, ok := state.Components.Primary(testutil.WelcomeText)
	require.True(t, ok)
	q := NewComponentProgressQueue(nil, primary.Clone())

	require.NoError(t, q.Submit("visitSection", model.NewObject(model.O("section", model.Int(1)))))
	assert.Error(t, q.Submit("visitSection", model.NewObject(model.O("section", model.Int(2)))))
	assert.Error(t, q.Submit("shred", model.Object{}))

	msgs := q.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.ImmutableID(testutil.WelcomeText), msgs[0].ComponentID)
	assert.Equal(t, int64(1), msgs[0].Seq)

	require.NoError(t, NewComponentProgressHandler(state.Components).Handle(msgs[0]))
	assert.Equal(t, model.Array{model.Int(1)}, state.Snapshot().ComponentProgress[testutil.WelcomeText]["visitedSections"])
}
