package component

import (
	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/model"
)

// NavButton moves the learner to its target. A button configured with
// completesLesson also completes the lesson it sits on.
type NavButton struct {
	Base
	cfg kinds.NavButtonConfig
}

func NewNavButton(d Deps) (Component, error) {
	cfg, err := kinds.ParseNavButtonConfig(d.Config)
	if err != nil {
		return nil, err
	}
	return &NavButton{Base: NewBase(d), cfg: cfg}, nil
}

func (c *NavButton) Interact(action string, _ model.Object) error {
	if action != "click" {
		return &ActionError{ComponentID: c.ID(), Action: action}
	}
	if err := c.Mutate("click", model.NewObject(model.O("at", model.Int(c.Now())))); err != nil {
		return err
	}
	if c.cfg.CompletesLesson {
		if lesson, ok := c.Registry.LessonForComponent(c.ID()); ok {
			if err := c.Overall.MarkLessonComplete(lesson); err != nil {
				return err
			}
		}
	}
	return c.Navigation.SetCurrentView(c.cfg.Target, c.cfg.Page)
}
