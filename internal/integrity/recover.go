// Package integrity turns arbitrary stored bytes into a bundle that is valid
// against the live curriculum registry, and reports exactly what it had to
// change.
//
// Recover is total: bad data never produces an error or a panic. Each
// section is checked against the strict schema and then rebuilt field by
// field, so a defect in one section never costs data in another.
package integrity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/model"
)

// Recover validates and repairs raw against reg.
//
// The returned error is non-nil only for a *DefectError: the assembled
// bundle failed the final assertion. Callers treat that as fatal.
func Recover(raw []byte, expectedOwner string, reg curriculum.Registry) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DefectError{Reason: fmt.Sprintf("panic during recovery: %v", r)}
		}
	}()

	schema, err := loadSchema()
	if err != nil {
		return Result{}, &DefectError{Reason: err.Error()}
	}

	r := &recovery{schema: schema, reg: reg}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		r.parseFailed = true
		top = map[string]json.RawMessage{}
	}

	res.Sections = make(map[Section]SectionMetrics, len(Sections))
	for key := range top {
		if !slices.Contains(Sections, Section(key)) {
			res.UnknownKeys = append(res.UnknownKeys, key)
		}
	}
	slices.Sort(res.UnknownKeys)
	res.ParseFailed = r.parseFailed

	var m SectionMetrics

	m = SectionMetrics{}
	res.Bundle.Metadata = r.metadata(top[string(SectionMetadata)], expectedOwner, &m, &res.Critical)
	res.Sections[SectionMetadata] = m

	m = SectionMetrics{}
	res.Bundle.OverallProgress = r.overallProgress(top[string(SectionOverallProgress)], &m)
	res.Sections[SectionOverallProgress] = m

	m = SectionMetrics{}
	res.Bundle.Settings = r.settings(top[string(SectionSettings)], &m)
	res.Sections[SectionSettings] = m

	m = SectionMetrics{}
	res.Bundle.NavigationState = r.navigation(top[string(SectionNavigationState)], &m)
	res.Sections[SectionNavigationState] = m

	m = SectionMetrics{}
	res.Bundle.ComponentProgress = r.componentProgress(top[string(SectionComponentProgress)], &m)
	res.Sections[SectionComponentProgress] = m

	if err := assertBundle(schema, res.Bundle, reg); err != nil {
		return res, err
	}

	res.PerfectlyValidInput = !res.ParseFailed && len(res.UnknownKeys) == 0 && !res.Critical.Any()
	for _, s := range Sections {
		if !res.Sections[s].Clean() {
			res.PerfectlyValidInput = false
		}
	}
	return res, nil
}

type recovery struct {
	schema      *bundleSchema
	reg         curriculum.Registry
	parseFailed bool
}

// section runs the strict check and decodes raw into an object. A missing,
// null or non-object section decodes to an empty object so that every field
// is counted as defaulted by the extractor.
func (r *recovery) section(def string, raw json.RawMessage, m *SectionMetrics) model.Object {
	if raw == nil {
		return model.Object{}
	}
	m.StrictValid = r.schema.validate(def, raw) == nil
	v, ok := lenient(raw)
	if !ok {
		return model.Object{}
	}
	obj, ok := v.(model.Object)
	if !ok {
		return model.Object{}
	}
	return obj
}

func (r *recovery) metadata(raw json.RawMessage, expected string, m *SectionMetrics, crit *CriticalFlags) model.Metadata {
	obj := r.section(defMetadata, raw, m)
	m.EntriesDropped += countUnknown(obj, "owner")

	owner, ok := obj.String("owner")
	if !ok || owner == "" {
		m.FieldsDefaulted++
	}
	// CRITICAL: never return a mismatched owner, not even in the report.
	if !ok || owner == "" || expected == "" || owner != expected {
		crit.IdentityMismatch = true
		return model.Metadata{Owner: model.SentinelOwner}
	}
	return model.Metadata{Owner: owner}
}

func (r *recovery) overallProgress(raw json.RawMessage, m *SectionMetrics) model.OverallProgress {
	obj := r.section(defOverallProgress, raw, m)
	m.EntriesDropped += countUnknown(obj,
		"lessonCompletions", "domainCompletions", "currentStreak", "lastStreakCheck",
		"totalLessonsCompleted", "totalDomainsCompleted")

	lessons, lessonsBefore := r.completions(obj, "lessonCompletions", r.reg.HasLesson, m)
	domains, domainsBefore := r.completions(obj, "domainCompletions", r.reg.HasDomain, m)

	// Claimed totals are compared with what the input itself supports,
	// before retired entries are dropped, so retirement is not corruption.
	if claimed, ok := nonNegative(obj, "totalLessonsCompleted", m); ok && claimed != lessonsBefore {
		m.CorruptionDetected = true
		m.LessonsLostToCorruption = max(claimed-lessonsBefore, 0)
	}
	if claimed, ok := nonNegative(obj, "totalDomainsCompleted", m); ok && claimed != domainsBefore {
		m.CorruptionDetected = true
		m.DomainsLostToCorruption = max(claimed-domainsBefore, 0)
	}

	m.EntriesSynthesized += synthesize(lessons, r.reg.AllLessonIDs())
	m.EntriesSynthesized += synthesize(domains, r.reg.AllDomainIDs())

	streak, _ := nonNegative(obj, "currentStreak", m)
	check, _ := nonNegative(obj, "lastStreakCheck", m)

	p := model.OverallProgress{
		LessonCompletions: lessons,
		DomainCompletions: domains,
		CurrentStreak:     streak,
		LastStreakCheck:   check,
	}
	p.Recount()
	return p
}

// completions extracts one completion map. It returns the surviving entries
// and the number of completed entries found before registry filtering.
func (r *recovery) completions(obj model.Object, key string, registered func(model.ImmutableID) bool, m *SectionMetrics) (map[model.ImmutableID]model.CompletionData, int64) {
	out := make(map[model.ImmutableID]model.CompletionData)
	entries, ok := obj[key].(model.Object)
	if !ok {
		m.FieldsDefaulted++
		return out, 0
	}

	var completed int64
	for _, k := range entries.SortedKeys() {
		id, err := model.ParseID(k)
		c, defaulted, valid := completionFrom(entries[k])
		if err != nil || !valid {
			m.EntriesDropped++
			continue
		}
		if c.IsComplete() {
			completed++
		}
		if !registered(id) {
			m.EntriesDropped++
			continue
		}
		m.FieldsDefaulted += defaulted
		out[id] = c
	}
	return out, completed
}

// completionFrom extracts one completion entry field by field. A valid
// timeCompleted is kept even when lastUpdated is bad or missing; lastUpdated
// then defaults to timeCompleted, or 0 for an incomplete entry. Unknown keys
// are ignored. It returns the number of defaulted or ignored fields and
// reports false only when v is not an object.
func completionFrom(v model.Value) (model.CompletionData, int, bool) {
	obj, ok := v.(model.Object)
	if !ok {
		return model.CompletionData{}, 0, false
	}
	defaulted := countUnknown(obj, "timeCompleted", "lastUpdated")

	var c model.CompletionData
	switch t := obj["timeCompleted"].(type) {
	case model.Null:
	case model.Int:
		if t >= 0 {
			at := int64(t)
			c.TimeCompleted = &at
		} else {
			defaulted++
		}
	default:
		defaulted++
	}

	last, ok := obj.Int("lastUpdated")
	if !ok || last < 0 {
		defaulted++
		last = 0
		if c.TimeCompleted != nil {
			last = *c.TimeCompleted
		}
	}
	c.LastUpdated = last
	return c, defaulted, true
}

func synthesize(m map[model.ImmutableID]model.CompletionData, registered []model.ImmutableID) int {
	n := 0
	for _, id := range registered {
		if _, ok := m[id]; !ok {
			m[id] = model.Incomplete(0)
			n++
		}
	}
	return n
}

func (r *recovery) settings(raw json.RawMessage, m *SectionMetrics) model.Settings {
	obj := r.section(defSettings, raw, m)
	m.EntriesDropped += countUnknown(obj, append(slices.Clone(model.SettingKeys), "lastUpdated")...)

	s := model.DefaultSettings()
	for _, key := range model.SettingKeys {
		v, ok := obj[key]
		if !ok || model.ValidateSetting(key, v) != nil {
			m.FieldsDefaulted++
			continue
		}
		s = s.WithSetting(key, v)
	}
	s.LastUpdated, _ = nonNegative(obj, "lastUpdated", m)
	return s
}

// navigation is all-or-nothing: the stored position is kept only if every
// field is present and the registry still has that page.
func (r *recovery) navigation(raw json.RawMessage, m *SectionMetrics) model.NavigationState {
	obj := r.section(defNavigationState, raw, m)

	entity, eok := obj.Int("currentEntityId")
	page, pok := obj.Int("currentPage")
	last, lok := obj.Int("lastUpdated")
	if eok && pok && lok && last >= 0 && len(obj) == 3 &&
		curriculum.ValidPosition(r.reg, model.ImmutableID(entity), page) {
		return model.NavigationState{CurrentEntityID: model.ImmutableID(entity), CurrentPage: page, LastUpdated: last}
	}
	m.Reset = true
	m.FieldsDefaulted = 3
	return curriculum.DefaultNavigation(r.reg)
}

func (r *recovery) componentProgress(raw json.RawMessage, m *SectionMetrics) map[model.ImmutableID]model.Object {
	obj := r.section(defComponentProgress, raw, m)
	if raw == nil {
		m.FieldsDefaulted++
	}

	out := make(map[model.ImmutableID]model.Object)
	for _, k := range obj.SortedKeys() {
		id, err := model.ParseID(k)
		if err != nil {
			m.EntriesDropped++
			continue
		}
		kind, ok := r.reg.ComponentType(id)
		if !ok {
			m.EntriesDropped++
			continue
		}
		def := kinds.MustLookup(kind)
		cfg, _ := r.reg.ComponentConfig(id)
		progress, ok := obj[k].(model.Object)
		if !ok || def.ValidateProgress(progress, cfg) != nil {
			out[id] = def.Initial(cfg)
			m.EntriesReset++
			continue
		}
		out[id] = progress.Clone()
	}

	for _, id := range r.reg.AllComponentIDs() {
		if _, ok := out[id]; ok {
			continue
		}
		kind, _ := r.reg.ComponentType(id)
		cfg, _ := r.reg.ComponentConfig(id)
		out[id] = kinds.MustLookup(kind).Initial(cfg)
		m.EntriesSynthesized++
	}
	return out
}

// nonNegative reads a non-negative integer field, counting it as defaulted
// (to zero) when missing or invalid.
func nonNegative(obj model.Object, key string, m *SectionMetrics) (int64, bool) {
	n, ok := obj.Int(key)
	if !ok || n < 0 {
		m.FieldsDefaulted++
		return 0, false
	}
	return n, true
}

func countUnknown(obj model.Object, known ...string) int {
	n := 0
	for k := range obj {
		if !slices.Contains(known, k) {
			n++
		}
	}
	return n
}

// lenient decodes raw like model.UnmarshalValue, except that an object
// containing undecodable members (floats, for instance) keeps its other
// members instead of failing as a whole.
func lenient(raw json.RawMessage) (model.Value, bool) {
	if v, err := model.UnmarshalValue(raw); err == nil {
		return v, true
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return model.Null{}, true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	obj := make(model.Object, len(fields))
	for k, f := range fields {
		if v, ok := lenient(f); ok {
			obj[k] = v
		}
	}
	return obj, true
}
