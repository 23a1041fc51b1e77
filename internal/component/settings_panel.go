package component

import (
	"github.com/mera-platform/mera/internal/model"
)

// SettingsPanel edits user preferences. Every accepted change is also
// counted in the panel's own progress.
type SettingsPanel struct {
	Base
}

func NewSettingsPanel(d Deps) (Component, error) {
	return &SettingsPanel{Base: NewBase(d)}, nil
}

func (c *SettingsPanel) Interact(action string, args model.Object) error {
	switch action {
	case "open":
		return c.Mutate("open", model.Object{})
	case "set":
		key, ok := args.String("key")
		value, present := args["value"]
		if !ok || !present {
			return &ActionError{ComponentID: c.ID(), Action: action}
		}
		if err := c.Settings.Set(key, value); err != nil {
			return err
		}
		return c.Mutate("recordChange", model.Object{})
	default:
		return &ActionError{ComponentID: c.ID(), Action: action}
	}
}
