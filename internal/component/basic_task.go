package component

import (
	"github.com/mera-platform/mera/internal/model"
)

// BasicTask is a checklist. Its only action is setCheckbox.
type BasicTask struct {
	Base
}

func NewBasicTask(d Deps) (Component, error) {
	return &BasicTask{Base: NewBase(d)}, nil
}

func (c *BasicTask) Interact(action string, args model.Object) error {
	switch action {
	case "setCheckbox":
		return c.Mutate(action, args)
	case "toggle":
		index, ok := args.Int("index")
		if !ok {
			return &ActionError{ComponentID: c.ID(), Action: action}
		}
		states, _ := c.Secondary.Progress().Array("checkboxStates")
		checked := false
		if index >= 0 && index < int64(len(states)) {
			checked = !bool(states[index].(model.Bool))
		}
		return c.Mutate("setCheckbox", model.NewObject(
			model.O("index", model.Int(index)),
			model.O("checked", model.Bool(checked)),
		))
	default:
		return &ActionError{ComponentID: c.ID(), Action: action}
	}
}
