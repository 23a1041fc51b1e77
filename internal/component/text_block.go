package component

import (
	"github.com/mera-platform/mera/internal/model"
)

// TextBlock is readable content split into sections. Visiting the last
// unvisited section marks the block read.
type TextBlock struct {
	Base
	sections int64
}

func NewTextBlock(d Deps) (Component, error) {
	sections, ok := d.Config.Int("sections")
	if !ok {
		sections = 1
	}
	return &TextBlock{Base: NewBase(d), sections: sections}, nil
}

func (c *TextBlock) Interact(action string, args model.Object) error {
	switch action {
	case "markRead", "setNote":
		return c.Mutate(action, args)
	case "visitSection":
		if err := c.Mutate(action, args); err != nil {
			return err
		}
		p := c.Secondary.Progress()
		visited, _ := p.Array("visitedSections")
		read, _ := p.Bool("read")
		if !read && int64(len(visited)) == c.sections {
			return c.Mutate("markRead", model.Object{})
		}
		return nil
	default:
		return &ActionError{ComponentID: c.ID(), Action: action}
	}
}
