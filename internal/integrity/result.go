package integrity

import (
	"errors"
	"fmt"

	"github.com/mera-platform/mera/internal/model"
)

// Section names a top-level bundle section.
type Section string

const (
	SectionMetadata          Section = "metadata"
	SectionOverallProgress   Section = "overallProgress"
	SectionSettings          Section = "settings"
	SectionNavigationState   Section = "navigationState"
	SectionComponentProgress Section = "componentProgress"
)

// Sections lists every section in wire order.
var Sections = []Section{
	SectionMetadata,
	SectionOverallProgress,
	SectionSettings,
	SectionNavigationState,
	SectionComponentProgress,
}

// SectionMetrics describes what recovery had to do to one section.
type SectionMetrics struct {
	// StrictValid means the section passed the strict schema as stored.
	StrictValid bool `json:"strictValid"`
	// FieldsDefaulted counts missing or invalid fields replaced by defaults.
	FieldsDefaulted int `json:"fieldsDefaulted"`
	// Reset means the whole section was replaced by its default.
	Reset bool `json:"reset,omitempty"`
	// EntriesDropped counts map entries removed: retired content, unknown
	// keys and malformed entries.
	EntriesDropped int `json:"entriesDropped"`
	// EntriesSynthesized counts registered content absent from the input.
	EntriesSynthesized int `json:"entriesSynthesized"`
	// EntriesReset counts component payloads replaced by the initializer.
	EntriesReset int `json:"entriesReset"`

	CorruptionDetected      bool  `json:"corruptionDetected"`
	LessonsLostToCorruption int64 `json:"lessonsLostToCorruption"`
	DomainsLostToCorruption int64 `json:"domainsLostToCorruption"`
}

// Clean reports whether the section came through untouched.
func (m SectionMetrics) Clean() bool {
	return m.StrictValid && m.FieldsDefaulted == 0 && !m.Reset &&
		m.EntriesDropped == 0 && m.EntriesSynthesized == 0 && m.EntriesReset == 0 &&
		!m.CorruptionDetected
}

// CriticalFlags are findings the caller must act on before using the bundle.
type CriticalFlags struct {
	// IdentityMismatch means the stored owner was missing or did not equal
	// the expected owner. The bundle carries model.SentinelOwner and must not
	// be shown to or merged for the expected owner.
	IdentityMismatch bool `json:"identityMismatch"`
}

// Any reports whether any flag is set.
func (c CriticalFlags) Any() bool {
	return c.IdentityMismatch
}

// Result is the outcome of Recover.
type Result struct {
	Bundle   model.Bundle               `json:"bundle"`
	Sections map[Section]SectionMetrics `json:"sections"`
	Critical CriticalFlags              `json:"critical"`
	// UnknownKeys lists top-level keys that are not bundle sections.
	UnknownKeys []string `json:"unknownKeys,omitempty"`
	// ParseFailed means the input was not a JSON object at all.
	ParseFailed bool `json:"parseFailed,omitempty"`
	// PerfectlyValidInput means the input was returned unchanged: every
	// section strictly valid, nothing defaulted, dropped, synthesized or
	// reset, no corruption and no identity mismatch.
	PerfectlyValidInput bool `json:"perfectlyValidInput"`
}

// DefectError means the recovery engine produced a bundle that fails its own
// final assertion. It is a bug in this package, never a property of the
// input.
type DefectError struct {
	Reason string
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("integrity defect: %s", e.Reason)
}

// IsDefect reports whether err is or wraps a *DefectError.
func IsDefect(err error) bool {
	var de *DefectError
	return errors.As(err, &de)
}
