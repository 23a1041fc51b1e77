package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mera-platform/mera/internal/model"
)

// DefaultOwner is used when a scenario names no owner.
const DefaultOwner = "https://learner.example/profile#me"

// Scenario is one scripted learner session.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description"`

	// Registry is the curriculum registry file or directory. Relative paths
	// are resolved against the scenario file by LoadScenario.
	Registry string `yaml:"registry"`

	// Owner is the learner identity. Defaults to DefaultOwner.
	Owner string `yaml:"owner,omitempty"`

	// Initial is an optional bundle file. It goes through recovery like a
	// stored bundle would.
	Initial string `yaml:"initial,omitempty"`

	// Start overrides the starting page.
	Start *View `yaml:"start,omitempty"`

	Steps  []Step `yaml:"steps"`
	Expect Expect `yaml:"expect"`
}

// View names an entity page.
type View struct {
	Entity model.ImmutableID `yaml:"entity"`
	Page   int64             `yaml:"page"`
}

// Step is one scenario step. Exactly one field is set.
type Step struct {
	Tick     int           `yaml:"tick,omitempty"`
	Advance  time.Duration `yaml:"advance,omitempty"`
	Interact *Interaction  `yaml:"interact,omitempty"`
	Navigate *View         `yaml:"navigate,omitempty"`
}

// Interaction is a UI event addressed to one component.
type Interaction struct {
	Component model.ImmutableID `yaml:"component"`
	Action    string            `yaml:"action"`
	Args      map[string]any    `yaml:"args,omitempty"`

	// Reject expects the component to refuse the action.
	Reject bool `yaml:"reject,omitempty"`
}

// Expect describes the final state. Unset fields are not checked.
type Expect struct {
	LessonsCompleted []model.ImmutableID `yaml:"lessonsCompleted,omitempty"`
	DomainsCompleted []model.ImmutableID `yaml:"domainsCompleted,omitempty"`
	Streak           *int64              `yaml:"streak,omitempty"`
	Navigation       *View               `yaml:"navigation,omitempty"`
	Active           []model.ImmutableID `yaml:"active,omitempty"`

	// Settings is a subset match on the settings section.
	Settings map[string]any `yaml:"settings,omitempty"`

	// Components is a per-component subset match on stored progress.
	Components map[model.ImmutableID]map[string]any `yaml:"components,omitempty"`

	// Fatal is the engine error code the run is expected to stop with.
	Fatal string `yaml:"fatal,omitempty"`
}

// Step kinds, as recorded in the trace.
const (
	StepTick     = "tick"
	StepAdvance  = "advance"
	StepInteract = "interact"
	StepNavigate = "navigate"
)

// Kind returns which field of the step is set, or "" if none is.
func (s Step) Kind() string {
	switch {
	case s.Tick > 0:
		return StepTick
	case s.Advance > 0:
		return StepAdvance
	case s.Interact != nil:
		return StepInteract
	case s.Navigate != nil:
		return StepNavigate
	default:
		return ""
	}
}

func (s Step) fieldsSet() int {
	n := 0
	for _, set := range []bool{s.Tick != 0, s.Advance != 0, s.Interact != nil, s.Navigate != nil} {
		if set {
			n++
		}
	}
	return n
}

// LoadScenario reads a scenario file. Unknown fields are rejected, and the
// registry and initial bundle paths are resolved against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	s.Registry = resolve(base, s.Registry)
	s.Initial = resolve(base, s.Initial)
	return s, nil
}

// ParseScenario decodes and validates a scenario. Paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Registry == "" {
		return fmt.Errorf("registry is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	if s.Expect.Streak != nil && *s.Expect.Streak < 0 {
		return fmt.Errorf("expect.streak must be non-negative")
	}
	for key := range s.Expect.Settings {
		if !slices.Contains(model.SettingKeys, key) {
			return fmt.Errorf("expect.settings: unknown key %q", key)
		}
	}
	for id := range s.Expect.Components {
		if model.KindOf(id) != model.IDKindComponent {
			return fmt.Errorf("expect.components: %d is not a component id", id)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.fieldsSet() {
	case 0:
		return fmt.Errorf("one of tick, advance, interact or navigate is required")
	case 1:
	default:
		return fmt.Errorf("only one of tick, advance, interact or navigate may be set")
	}

	switch {
	case step.Tick < 0:
		return fmt.Errorf("tick must be positive")
	case step.Advance < 0:
		return fmt.Errorf("advance must be positive")
	case step.Interact != nil:
		if model.KindOf(step.Interact.Component) != model.IDKindComponent {
			return fmt.Errorf("interact: %d is not a component id", step.Interact.Component)
		}
		if step.Interact.Action == "" {
			return fmt.Errorf("interact: action is required")
		}
	case step.Navigate != nil:
		if !model.IsEntity(step.Navigate.Entity) {
			return fmt.Errorf("navigate: %d is not a menu or lesson id", step.Navigate.Entity)
		}
	}
	return nil
}
