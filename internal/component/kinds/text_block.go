package kinds

import (
	"fmt"
	"slices"

	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

const maxNoteLength = 2000

func textBlockSections(cfg model.Object) (int64, error) {
	if err := onlyKeys(cfg, "text", "sections"); err != nil {
		return 0, err
	}
	if _, err := requireNonEmptyString(cfg, "text", 100_000); err != nil {
		return 0, err
	}
	return optionalInt(cfg, "sections", 1, 1, 100)
}

var textBlock = &Definition{
	Kind: TextBlock,
	Schema: `{
		"type": "object",
		"properties": {
			"read": {"type": "boolean"},
			"visitedSections": {"type": "array", "items": {"type": "integer", "minimum": 0}, "uniqueItems": true},
			"note": {"type": "string", "maxLength": 2000}
		},
		"required": ["read", "visitedSections", "note"],
		"additionalProperties": false
	}`,
	Trump: trump.Table{
		"read":            trump.OR,
		"visitedSections": trump.UNION,
		"note":            trump.PreferNonEmpty,
	},
	ValidateConfig: func(cfg model.Object) error {
		_, err := textBlockSections(cfg)
		return err
	},
	Initial: func(model.Object) model.Object {
		return model.NewObject(
			model.O("read", model.Bool(false)),
			model.O("visitedSections", model.Array{}),
			model.O("note", model.String("")),
		)
	},
	Validate: func(progress, cfg model.Object) error {
		sections, err := textBlockSections(cfg)
		if err != nil {
			return err
		}
		if _, err := requireBool(progress, "read"); err != nil {
			return err
		}
		visited, ok := progress.Array("visitedSections")
		if !ok {
			return fmt.Errorf(`"visitedSections" must be an array`)
		}
		for i, v := range visited {
			n, ok := v.(model.Int)
			if !ok || int64(n) < 0 || int64(n) >= sections {
				return fmt.Errorf(`"visitedSections"[%d] out of range [0, %d)`, i, sections)
			}
		}
		_, err = requireString(progress, "note", maxNoteLength)
		return err
	},
	Methods: map[string]Method{
		"markRead": {
			Validate: noArgs,
			Apply: func(progress, _, _ model.Object) (model.Object, error) {
				progress["read"] = model.Bool(true)
				return progress, nil
			},
		},
		"visitSection": {
			Validate: func(args, cfg model.Object) error {
				sections, err := textBlockSections(cfg)
				if err != nil {
					return err
				}
				if err := onlyKeys(args, "section"); err != nil {
					return err
				}
				_, err = requireInt(args, "section", 0, sections-1)
				return err
			},
			Apply: func(progress, args, _ model.Object) (model.Object, error) {
				section, _ := args.Int("section")
				visited, _ := progress.Array("visitedSections")
				if !slices.ContainsFunc(visited, func(v model.Value) bool { return v == model.Int(section) }) {
					visited = append(visited, model.Int(section))
					slices.SortFunc(visited, func(a, b model.Value) int {
						return int(a.(model.Int)) - int(b.(model.Int))
					})
				}
				progress["visitedSections"] = visited
				return progress, nil
			},
		},
		"setNote": {
			Validate: func(args, _ model.Object) error {
				if err := onlyKeys(args, "note"); err != nil {
					return err
				}
				_, err := requireString(args, "note", maxNoteLength)
				return err
			},
			Apply: func(progress, args, _ model.Object) (model.Object, error) {
				note, _ := args.String("note")
				progress["note"] = model.String(note)
				return progress, nil
			},
		},
	},
}
