package model

import (
	"fmt"
	"strconv"
)

// ImmutableID identifies a menu, lesson, domain or component. IDs are never
// reused or renumbered; the magnitude of the ID encodes what it refers to.
type ImmutableID int64

// Timestamp is a unix epoch time in milliseconds.
type Timestamp = int64

// IDKind classifies an ImmutableID by its range.
type IDKind int

const (
	IDKindInvalid IDKind = iota
	IDKindMenu
	IDKindLesson
	IDKindDomain
	IDKindComponent
)

// ID ranges. Bounds are inclusive.
const (
	MinMenuID      ImmutableID = 1
	MaxMenuID      ImmutableID = 99
	MinLessonID    ImmutableID = 100
	MaxLessonID    ImmutableID = 99_999
	MinDomainID    ImmutableID = 100_000
	MaxDomainID    ImmutableID = 999_999
	MinComponentID ImmutableID = 1_000_000
	MaxComponentID ImmutableID = 999_999_999_999
)

func (k IDKind) String() string {
	switch k {
	case IDKindMenu:
		return "menu"
	case IDKindLesson:
		return "lesson"
	case IDKindDomain:
		return "domain"
	case IDKindComponent:
		return "component"
	default:
		return "invalid"
	}
}

// KindOf returns the kind encoded in id's magnitude.
func KindOf(id ImmutableID) IDKind {
	switch {
	case id >= MinMenuID && id <= MaxMenuID:
		return IDKindMenu
	case id >= MinLessonID && id <= MaxLessonID:
		return IDKindLesson
	case id >= MinDomainID && id <= MaxDomainID:
		return IDKindDomain
	case id >= MinComponentID && id <= MaxComponentID:
		return IDKindComponent
	default:
		return IDKindInvalid
	}
}

// IsEntity reports whether id names something navigable (a menu or a lesson).
func IsEntity(id ImmutableID) bool {
	k := KindOf(id)
	return k == IDKindMenu || k == IDKindLesson
}

func (id ImmutableID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal map key into an ImmutableID.
func ParseID(s string) (ImmutableID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be positive", s)
	}
	return ImmutableID(n), nil
}
