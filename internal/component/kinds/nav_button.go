package kinds

import (
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

// NavButtonConfig is the parsed configuration of a navigation button.
type NavButtonConfig struct {
	Label           string
	Target          model.ImmutableID
	Page            int64
	CompletesLesson bool
}

// ParseNavButtonConfig parses and checks a nav_button configuration.
func ParseNavButtonConfig(cfg model.Object) (NavButtonConfig, error) {
	if err := onlyKeys(cfg, "label", "target", "page", "completesLesson"); err != nil {
		return NavButtonConfig{}, err
	}
	label, err := requireNonEmptyString(cfg, "label", 200)
	if err != nil {
		return NavButtonConfig{}, err
	}
	target, err := requireInt(cfg, "target", int64(model.MinMenuID), int64(model.MaxLessonID))
	if err != nil {
		return NavButtonConfig{}, err
	}
	page, err := optionalInt(cfg, "page", 0, 0, 1000)
	if err != nil {
		return NavButtonConfig{}, err
	}
	completes, err := optionalBool(cfg, "completesLesson", false)
	if err != nil {
		return NavButtonConfig{}, err
	}
	return NavButtonConfig{
		Label:           label,
		Target:          model.ImmutableID(target),
		Page:            page,
		CompletesLesson: completes,
	}, nil
}

var navButton = &Definition{
	Kind: NavButton,
	Schema: `{
		"type": "object",
		"properties": {
			"clicked": {"type": "boolean"},
			"lastClicked": {"type": "integer", "minimum": 0}
		},
		"required": ["clicked", "lastClicked"],
		"additionalProperties": false
	}`,
	Trump: trump.Table{
		"clicked":     trump.OR,
		"lastClicked": trump.MAX,
	},
	ValidateConfig: func(cfg model.Object) error {
		_, err := ParseNavButtonConfig(cfg)
		return err
	},
	Initial: func(model.Object) model.Object {
		return model.NewObject(
			model.O("clicked", model.Bool(false)),
			model.O("lastClicked", model.Int(0)),
		)
	},
	Validate: func(progress, _ model.Object) error {
		if _, err := requireBool(progress, "clicked"); err != nil {
			return err
		}
		_, err := requireInt(progress, "lastClicked", 0, 1<<62)
		return err
	},
	References: func(cfg model.Object) []EntityRef {
		c, err := ParseNavButtonConfig(cfg)
		if err != nil {
			return nil
		}
		return []EntityRef{{Entity: c.Target, Page: c.Page}}
	},
	Methods: map[string]Method{
		"click": {
			Validate: func(args, _ model.Object) error {
				if err := onlyKeys(args, "at"); err != nil {
					return err
				}
				_, err := requireInt(args, "at", 0, 1<<62)
				return err
			},
			Apply: func(progress, args, _ model.Object) (model.Object, error) {
				at, _ := args.Int("at")
				last, _ := progress.Int("lastClicked")
				progress["clicked"] = model.Bool(true)
				progress["lastClicked"] = model.Int(max(last, at))
				return progress, nil
			},
		},
	},
}
