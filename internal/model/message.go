package model

import "fmt"

// Family identifies which state manager a message targets.
type Family int

const (
	FamilyComponentProgress Family = iota + 1
	FamilyOverallProgress
	FamilyNavigation
	FamilySettings
)

// Families lists every family in drain order.
var Families = []Family{FamilyComponentProgress, FamilyOverallProgress, FamilyNavigation, FamilySettings}

func (f Family) String() string {
	switch f {
	case FamilyComponentProgress:
		return "component_progress"
	case FamilyOverallProgress:
		return "overall_progress"
	case FamilyNavigation:
		return "navigation"
	case FamilySettings:
		return "settings"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Message is a request from a component to mutate shared state. It is
// produced by a queue manager, consumed exactly once by a handler and never
// persisted.
type Message struct {
	Family Family
	// ComponentID is the sender. Required for component-progress messages,
	// where it must match the component the message was drained from.
	ComponentID ImmutableID
	Method      string
	Args        Object
	// Seq orders messages across queues.
	Seq int64
}
