package kinds

import (
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

var settingsPanel = &Definition{
	Kind: SettingsPanel,
	Schema: `{
		"type": "object",
		"properties": {
			"opened": {"type": "boolean"},
			"changes": {"type": "integer", "minimum": 0}
		},
		"required": ["opened", "changes"],
		"additionalProperties": false
	}`,
	Trump: trump.Table{
		"opened":  trump.OR,
		"changes": trump.MAX,
	},
	ValidateConfig: func(cfg model.Object) error {
		if err := onlyKeys(cfg, "title"); err != nil {
			return err
		}
		_, err := optionalString(cfg, "title", 200)
		return err
	},
	Initial: func(model.Object) model.Object {
		return model.NewObject(
			model.O("opened", model.Bool(false)),
			model.O("changes", model.Int(0)),
		)
	},
	Validate: func(progress, _ model.Object) error {
		if _, err := requireBool(progress, "opened"); err != nil {
			return err
		}
		_, err := requireInt(progress, "changes", 0, 1<<53)
		return err
	},
	Methods: map[string]Method{
		"open": {
			Validate: noArgs,
			Apply: func(progress, _, _ model.Object) (model.Object, error) {
				progress["opened"] = model.Bool(true)
				return progress, nil
			},
		},
		"recordChange": {
			Validate: noArgs,
			Apply: func(progress, _, _ model.Object) (model.Object, error) {
				n, _ := progress.Int("changes")
				progress["changes"] = model.Int(n + 1)
				return progress, nil
			},
		},
	},
}
