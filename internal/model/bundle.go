package model

// SentinelOwner replaces the owner identity of a bundle whose recovered owner
// did not match the expected one. It never equals a real identity.
const SentinelOwner = "urn:mera:owner-mismatch"

// Setting defaults.
const (
	DefaultTheme         = "auto"
	DefaultLanguage      = "en"
	DefaultFontSize      = "medium"
	DefaultReducedMotion = false
)

// Setting keys as they appear on the wire.
const (
	SettingTheme         = "theme"
	SettingLanguage      = "language"
	SettingFontSize      = "fontSize"
	SettingReducedMotion = "reducedMotion"
)

// SettingKeys lists every user-settable key in wire order.
var SettingKeys = []string{SettingTheme, SettingLanguage, SettingFontSize, SettingReducedMotion}

// CompletionData records whether a lesson or domain is complete.
// A nil TimeCompleted means incomplete.
type CompletionData struct {
	TimeCompleted *int64 `json:"timeCompleted"`
	LastUpdated   int64  `json:"lastUpdated"`
}

// Completed returns completion data completed at the given time.
func Completed(at int64) CompletionData {
	t := at
	return CompletionData{TimeCompleted: &t, LastUpdated: at}
}

// Incomplete returns incomplete completion data last touched at the given time.
func Incomplete(at int64) CompletionData {
	return CompletionData{LastUpdated: at}
}

// IsComplete reports whether TimeCompleted is set.
func (c CompletionData) IsComplete() bool {
	return c.TimeCompleted != nil
}

// Clone returns a copy that shares no pointers with c.
func (c CompletionData) Clone() CompletionData {
	if c.TimeCompleted != nil {
		t := *c.TimeCompleted
		c.TimeCompleted = &t
	}
	return c
}

// Equal compares two completion records by value.
func (c CompletionData) Equal(o CompletionData) bool {
	if c.LastUpdated != o.LastUpdated || c.IsComplete() != o.IsComplete() {
		return false
	}
	return !c.IsComplete() || *c.TimeCompleted == *o.TimeCompleted
}

// OverallProgress is the learner's cross-lesson progress.
//
// INVARIANT: TotalLessonsCompleted and TotalDomainsCompleted always equal the
// number of entries with a non-nil TimeCompleted. Use Recount after any
// change to the completion maps.
type OverallProgress struct {
	LessonCompletions     map[ImmutableID]CompletionData `json:"lessonCompletions"`
	DomainCompletions     map[ImmutableID]CompletionData `json:"domainCompletions"`
	CurrentStreak         int64                          `json:"currentStreak"`
	LastStreakCheck       int64                          `json:"lastStreakCheck"`
	TotalLessonsCompleted int64                          `json:"totalLessonsCompleted"`
	TotalDomainsCompleted int64                          `json:"totalDomainsCompleted"`
}

// CountCompleted counts entries with a non-nil TimeCompleted.
func CountCompleted(m map[ImmutableID]CompletionData) int64 {
	var n int64
	for _, c := range m {
		if c.IsComplete() {
			n++
		}
	}
	return n
}

// Recount recomputes both totals from the completion maps.
func (p *OverallProgress) Recount() {
	p.TotalLessonsCompleted = CountCompleted(p.LessonCompletions)
	p.TotalDomainsCompleted = CountCompleted(p.DomainCompletions)
}

// Clone returns a deep copy. Nil maps become empty maps.
func (p OverallProgress) Clone() OverallProgress {
	out := p
	out.LessonCompletions = cloneCompletions(p.LessonCompletions)
	out.DomainCompletions = cloneCompletions(p.DomainCompletions)
	return out
}

func cloneCompletions(m map[ImmutableID]CompletionData) map[ImmutableID]CompletionData {
	out := make(map[ImmutableID]CompletionData, len(m))
	for id, c := range m {
		out[id] = c.Clone()
	}
	return out
}

// Settings holds independently defaultable user preferences. LastUpdated is
// the section timestamp used when merging two copies.
type Settings struct {
	Theme         string `json:"theme" validate:"required,oneof=light dark auto"`
	Language      string `json:"language" validate:"required,bcp47"`
	FontSize      string `json:"fontSize" validate:"required,oneof=small medium large"`
	ReducedMotion bool   `json:"reducedMotion"`
	LastUpdated   int64  `json:"lastUpdated" validate:"gte=0"`
}

// DefaultSettings returns settings with every field at its default.
func DefaultSettings() Settings {
	return Settings{
		Theme:         DefaultTheme,
		Language:      DefaultLanguage,
		FontSize:      DefaultFontSize,
		ReducedMotion: DefaultReducedMotion,
	}
}

// NavigationState is where the learner currently is.
type NavigationState struct {
	CurrentEntityID ImmutableID `json:"currentEntityId"`
	CurrentPage     int64       `json:"currentPage"`
	LastUpdated     int64       `json:"lastUpdated"`
}

// SameView reports whether two states point at the same entity and page.
func (n NavigationState) SameView(o NavigationState) bool {
	return n.CurrentEntityID == o.CurrentEntityID && n.CurrentPage == o.CurrentPage
}

// Metadata identifies whose progress a bundle holds.
type Metadata struct {
	Owner string `json:"owner"`
}

// Bundle is the unit of persistence: every section of a learner's state.
type Bundle struct {
	Metadata          Metadata                `json:"metadata"`
	OverallProgress   OverallProgress         `json:"overallProgress"`
	Settings          Settings                `json:"settings"`
	NavigationState   NavigationState         `json:"navigationState"`
	ComponentProgress map[ImmutableID]Object `json:"componentProgress"`
}

// NewBundle returns an empty bundle for owner with default settings.
// Navigation is left zero; callers point it at a registered entity.
func NewBundle(owner string) Bundle {
	return Bundle{
		Metadata: Metadata{Owner: owner},
		OverallProgress: OverallProgress{
			LessonCompletions: map[ImmutableID]CompletionData{},
			DomainCompletions: map[ImmutableID]CompletionData{},
		},
		Settings:          DefaultSettings(),
		ComponentProgress: map[ImmutableID]Object{},
	}
}

// Clone returns a deep copy. Nil maps become empty maps so that the result
// always serializes every section as an object.
func (b Bundle) Clone() Bundle {
	out := b
	out.OverallProgress = b.OverallProgress.Clone()
	out.ComponentProgress = make(map[ImmutableID]Object, len(b.ComponentProgress))
	for id, p := range b.ComponentProgress {
		out.ComponentProgress[id] = p.Clone()
	}
	return out
}

// ComponentIDs returns the ids with stored progress in ascending order.
func (b Bundle) ComponentIDs() []ImmutableID {
	return SortedIDs(b.ComponentProgress)
}
