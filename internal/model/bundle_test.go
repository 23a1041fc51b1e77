package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		id   ImmutableID
		want IDKind
	}{
		{0, IDKindInvalid},
		{1, IDKindMenu},
		{99, IDKindMenu},
		{100, IDKindLesson},
		{99_999, IDKindLesson},
		{100_000, IDKindDomain},
		{999_999, IDKindDomain},
		{1_000_000, IDKindComponent},
		{999_999_999_999, IDKindComponent},
		{1_000_000_000_000, IDKindInvalid},
		{-5, IDKindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.id))
		})
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("100")
	require.NoError(t, err)
	assert.Equal(t, ImmutableID(100), id)

	_, err = ParseID("abc")
	assert.Error(t, err)
	_, err = ParseID("0")
	assert.Error(t, err)
}

func TestOverallProgress_Recount(t *testing.T) {
	p := OverallProgress{
		LessonCompletions: map[ImmutableID]CompletionData{
			100: Completed(1000),
			101: Incomplete(2000),
			102: Completed(3000),
		},
		DomainCompletions:     map[ImmutableID]CompletionData{100_000: Incomplete(0)},
		TotalLessonsCompleted: 9,
		TotalDomainsCompleted: 4,
	}

	p.Recount()

	assert.Equal(t, int64(2), p.TotalLessonsCompleted)
	assert.Equal(t, int64(0), p.TotalDomainsCompleted)
}

func TestBundleClone_Independent(t *testing.T) {
	b := NewBundle("alice")
	b.OverallProgress.LessonCompletions[100] = Completed(1000)
	b.ComponentProgress[1_000_001] = Object{"complete": Bool(false)}

	c := b.Clone()
	*c.OverallProgress.LessonCompletions[100].TimeCompleted = 5
	c.OverallProgress.LessonCompletions[101] = Completed(1)
	c.ComponentProgress[1_000_001]["complete"] = Bool(true)

	assert.Equal(t, int64(1000), *b.OverallProgress.LessonCompletions[100].TimeCompleted)
	assert.NotContains(t, b.OverallProgress.LessonCompletions, ImmutableID(101))
	assert.Equal(t, Bool(false), b.ComponentProgress[1_000_001]["complete"])
}

func TestBundleClone_NilMapsBecomeEmpty(t *testing.T) {
	var b Bundle
	c := b.Clone()

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lessonCompletions":{}`)
	assert.Contains(t, string(data), `"componentProgress":{}`)
}

func TestBundle_Canonical(t *testing.T) {
	b := NewBundle("alice")

	data, err := b.Canonical()
	require.NoError(t, err)

	expected := `{"componentProgress":{},"metadata":{"owner":"alice"},` +
		`"navigationState":{"currentEntityId":0,"currentPage":0,"lastUpdated":0},` +
		`"overallProgress":{"currentStreak":0,"domainCompletions":{},"lastStreakCheck":0,"lessonCompletions":{},"totalDomainsCompleted":0,"totalLessonsCompleted":0},` +
		`"settings":{"fontSize":"medium","language":"en","lastUpdated":0,"reducedMotion":false,"theme":"auto"}}`
	assert.Equal(t, expected, string(data))
}

func TestCompletionData_JSON(t *testing.T) {
	data, err := json.Marshal(Incomplete(7))
	require.NoError(t, err)
	assert.Equal(t, `{"timeCompleted":null,"lastUpdated":7}`, string(data))

	var c CompletionData
	require.NoError(t, json.Unmarshal([]byte(`{"timeCompleted":1000,"lastUpdated":1000}`), &c))
	assert.True(t, c.IsComplete())
	assert.True(t, c.Equal(Completed(1000)))
}

func TestDigest_StableAcrossKeyOrder(t *testing.T) {
	a, err := CanonicalizeJSON([]byte(`{"b":1,"a":[true]}`))
	require.NoError(t, err)
	b, err := CanonicalizeJSON([]byte(`{ "a": [ true ], "b": 1 }`))
	require.NoError(t, err)

	assert.Equal(t, Digest(a), Digest(b))
	assert.Len(t, Digest(a), 64)
}

func TestVersion_String(t *testing.T) {
	assert.Equal(t, "1.0.0", RuntimeVersion.String())
	assert.Equal(t, "mera.progress.json", BundleKey)
}
