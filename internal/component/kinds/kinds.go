// Package kinds is the closed set of component kinds the runtime knows how to
// host. Each kind is described by one Definition: its progress schema,
// semantic validator, initializer, mutation methods, trump table and the
// message families it may emit.
//
// Adding a kind means adding a constant, a Definition and a permission row.
// Lookup and Permissions are exhaustive over All; the package tests fail if
// any of the three is missing.
package kinds

import (
	"fmt"

	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

// Kind identifies a component type.
type Kind int

const (
	BasicTask Kind = iota + 1
	TextBlock
	NavButton
	SettingsPanel
)

// All lists every kind.
var All = []Kind{BasicTask, TextBlock, NavButton, SettingsPanel}

var kindNames = map[Kind]string{
	BasicTask:     "basic_task",
	TextBlock:     "text_block",
	NavButton:     "nav_button",
	SettingsPanel: "settings_panel",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Parse resolves a registry type name such as "basic_task".
func Parse(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown component type %q", name)
}

// Method is a named mutation of a component's progress.
type Method struct {
	// Validate checks arguments without touching progress. Queue managers run
	// it before enqueuing; handlers run it again before Apply.
	Validate func(args, cfg model.Object) error
	// Apply returns the new progress. It never mutates its inputs.
	Apply func(progress, args, cfg model.Object) (model.Object, error)
}

// EntityRef points at a navigable entity and page named in a component config.
type EntityRef struct {
	Entity model.ImmutableID
	Page   int64
}

// Definition describes one kind.
type Definition struct {
	Kind Kind
	// Schema is the JSON schema every persisted progress payload must satisfy.
	Schema string
	// Trump declares how two copies of the same progress are reconciled.
	Trump trump.Table
	// ValidateConfig checks the registry-supplied configuration.
	ValidateConfig func(cfg model.Object) error
	// Initial returns fresh progress for a configuration.
	Initial func(cfg model.Object) model.Object
	// Validate applies checks the schema cannot express, such as array
	// lengths that depend on configuration.
	Validate func(progress, cfg model.Object) error
	// Normalize recomputes fields derived from other fields, after a merge
	// has combined them independently. Nil when the kind derives nothing.
	Normalize func(progress, cfg model.Object) model.Object
	// References lists entities the configuration points at, for registry
	// build checks. Nil when the kind references nothing.
	References func(cfg model.Object) []EntityRef
	Methods    map[string]Method
}

// Lookup returns the definition for k.
func Lookup(k Kind) (*Definition, bool) {
	switch k {
	case BasicTask:
		return basicTask, true
	case TextBlock:
		return textBlock, true
	case NavButton:
		return navButton, true
	case SettingsPanel:
		return settingsPanel, true
	default:
		return nil, false
	}
}

// MustLookup is Lookup for callers that already validated k.
func MustLookup(k Kind) *Definition {
	def, ok := Lookup(k)
	if !ok {
		panic(fmt.Sprintf("kinds: no definition for %s", k))
	}
	return def
}

// Permissions is the set of message families a kind may emit.
type Permissions map[model.Family]bool

// Allows reports whether f is permitted.
func (p Permissions) Allows(f model.Family) bool {
	return p[f]
}

var permissionTable = map[Kind]Permissions{
	BasicTask: {
		model.FamilyComponentProgress: true,
	},
	TextBlock: {
		model.FamilyComponentProgress: true,
	},
	NavButton: {
		model.FamilyComponentProgress: true,
		model.FamilyOverallProgress:   true,
		model.FamilyNavigation:        true,
	},
	SettingsPanel: {
		model.FamilyComponentProgress: true,
		model.FamilySettings:          true,
	},
}

// PermissionsFor returns the permission row for k.
func PermissionsFor(k Kind) (Permissions, bool) {
	p, ok := permissionTable[k]
	return p, ok
}

// ValidateProgress runs the structural schema and the semantic validator.
func (d *Definition) ValidateProgress(progress, cfg model.Object) error {
	raw, err := progress.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := validateSchema(d.Kind, raw); err != nil {
		return err
	}
	return d.Validate(progress, cfg)
}

// ApplyMethod validates and applies a named method.
func (d *Definition) ApplyMethod(method string, progress, args, cfg model.Object) (model.Object, error) {
	m, ok := d.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s has no method %q", d.Kind, method)
	}
	if err := m.Validate(args, cfg); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", d.Kind, method, err)
	}
	next, err := m.Apply(progress.Clone(), args, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", d.Kind, method, err)
	}
	return next, nil
}

// ValidateCall checks that method exists and args are acceptable.
func (d *Definition) ValidateCall(method string, args, cfg model.Object) error {
	m, ok := d.Methods[method]
	if !ok {
		return fmt.Errorf("%s has no method %q", d.Kind, method)
	}
	if err := m.Validate(args, cfg); err != nil {
		return fmt.Errorf("%s.%s: %w", d.Kind, method, err)
	}
	return nil
}
