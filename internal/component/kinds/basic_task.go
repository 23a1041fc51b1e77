package kinds

import (
	"fmt"

	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

const maxCheckboxes = 20

// basicTaskConfig is the registry configuration of a checklist task.
type basicTaskConfig struct {
	title    string
	boxes    int
	required int
}

func parseBasicTaskConfig(cfg model.Object) (basicTaskConfig, error) {
	if err := onlyKeys(cfg, "title", "description", "checkboxes", "requiredCheckboxes"); err != nil {
		return basicTaskConfig{}, err
	}
	title, err := requireNonEmptyString(cfg, "title", 200)
	if err != nil {
		return basicTaskConfig{}, err
	}
	if _, err := optionalString(cfg, "description", 2000); err != nil {
		return basicTaskConfig{}, err
	}
	boxes, ok := cfg.Array("checkboxes")
	if !ok || len(boxes) == 0 || len(boxes) > maxCheckboxes {
		return basicTaskConfig{}, fmt.Errorf(`"checkboxes" must list 1 to %d labels`, maxCheckboxes)
	}
	for i, b := range boxes {
		if s, ok := b.(model.String); !ok || s == "" {
			return basicTaskConfig{}, fmt.Errorf(`"checkboxes"[%d] must be a non-empty string`, i)
		}
	}
	required, err := optionalInt(cfg, "requiredCheckboxes", int64(len(boxes)), 1, int64(len(boxes)))
	if err != nil {
		return basicTaskConfig{}, err
	}
	return basicTaskConfig{title: title, boxes: len(boxes), required: int(required)}, nil
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

var basicTask = &Definition{
	Kind: BasicTask,
	Schema: `{
		"type": "object",
		"properties": {
			"checkboxStates": {"type": "array", "items": {"type": "boolean"}, "maxItems": 20},
			"complete": {"type": "boolean"},
			"attempts": {"type": "integer", "minimum": 0},
			"pristine": {"type": "boolean"}
		},
		"required": ["checkboxStates", "complete", "attempts", "pristine"],
		"additionalProperties": false
	}`,
	Trump: trump.Table{
		"checkboxStates": trump.OR,
		"complete":       trump.OR,
		"attempts":       trump.MAX,
		"pristine":       trump.NOR,
	},
	ValidateConfig: func(cfg model.Object) error {
		_, err := parseBasicTaskConfig(cfg)
		return err
	},
	Initial: func(cfg model.Object) model.Object {
		c, _ := parseBasicTaskConfig(cfg)
		return model.NewObject(
			model.O("checkboxStates", toBoolArray(make([]bool, c.boxes))),
			model.O("complete", model.Bool(false)),
			model.O("attempts", model.Int(0)),
			model.O("pristine", model.Bool(true)),
		)
	},
	Validate: func(progress, cfg model.Object) error {
		c, err := parseBasicTaskConfig(cfg)
		if err != nil {
			return err
		}
		states, err := boolArray(progress, "checkboxStates")
		if err != nil {
			return err
		}
		if len(states) != c.boxes {
			return fmt.Errorf("checkboxStates has %d entries, config declares %d", len(states), c.boxes)
		}
		complete, err := requireBool(progress, "complete")
		if err != nil {
			return err
		}
		if countTrue(states) >= c.required && !complete {
			return fmt.Errorf("%d of %d required boxes checked but task not complete", countTrue(states), c.required)
		}
		if _, err := requireInt(progress, "attempts", 0, 1<<53); err != nil {
			return err
		}
		_, err = requireBool(progress, "pristine")
		return err
	},
	Normalize: func(progress, cfg model.Object) model.Object {
		c, err := parseBasicTaskConfig(cfg)
		if err != nil {
			return progress
		}
		states, err := boolArray(progress, "checkboxStates")
		if err != nil {
			return progress
		}
		complete, ok := progress.Bool("complete")
		if !ok || complete || countTrue(states) < c.required {
			return progress
		}
		out := progress.Clone()
		out["complete"] = model.Bool(true)
		return out
	},
	Methods: map[string]Method{
		"setCheckbox": {
			Validate: func(args, cfg model.Object) error {
				c, err := parseBasicTaskConfig(cfg)
				if err != nil {
					return err
				}
				if err := onlyKeys(args, "index", "checked"); err != nil {
					return err
				}
				if _, err := requireInt(args, "index", 0, int64(c.boxes-1)); err != nil {
					return err
				}
				_, err = requireBool(args, "checked")
				return err
			},
			Apply: func(progress, args, cfg model.Object) (model.Object, error) {
				c, err := parseBasicTaskConfig(cfg)
				if err != nil {
					return nil, err
				}
				states, err := boolArray(progress, "checkboxStates")
				if err != nil {
					return nil, err
				}
				index, _ := args.Int("index")
				checked, _ := args.Bool("checked")
				states[index] = checked

				complete, _ := progress.Bool("complete")
				attempts, _ := progress.Int("attempts")
				pristine, _ := progress.Bool("pristine")

				progress["checkboxStates"] = toBoolArray(states)
				progress["complete"] = model.Bool(complete || countTrue(states) >= c.required)
				progress["attempts"] = model.Int(attempts + 1)
				progress["pristine"] = model.Bool(pristine && checked)
				return progress, nil
			},
		},
	},
}
