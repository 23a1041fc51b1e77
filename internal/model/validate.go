package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

// settingsValidate checks Settings struct tags. The custom "bcp47" tag
// accepts well-formed BCP-47 language tags in canonical form ("pt-BR", not
// "pt_br").
var settingsValidate *validator.Validate

func init() {
	settingsValidate = validator.New()
	_ = settingsValidate.RegisterValidation("bcp47", validateBCP47)
}

func validateBCP47(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	tag, err := language.Parse(s)
	return err == nil && tag.String() == s
}

// settingRules are the validator tags applied to individual string settings.
var settingRules = map[string]string{
	SettingTheme:    "required,oneof=light dark auto",
	SettingLanguage: "required,bcp47",
	SettingFontSize: "required,oneof=small medium large",
}

// ValidateSettings checks every field of s.
func ValidateSettings(s Settings) error {
	return settingsValidate.Struct(s)
}

// ValidateSetting checks one wire value for a setting key.
func ValidateSetting(key string, v Value) error {
	if key == SettingReducedMotion {
		if _, ok := v.(Bool); !ok {
			return fmt.Errorf("setting %q must be a boolean", key)
		}
		return nil
	}
	rule, ok := settingRules[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	s, ok := v.(String)
	if !ok {
		return fmt.Errorf("setting %q must be a string", key)
	}
	if err := settingsValidate.Var(string(s), rule); err != nil {
		return fmt.Errorf("setting %q: invalid value %q", key, string(s))
	}
	return nil
}

// WithSetting returns s with key set to v. v must already satisfy
// ValidateSetting.
func (s Settings) WithSetting(key string, v Value) Settings {
	switch key {
	case SettingTheme:
		s.Theme = string(v.(String))
	case SettingLanguage:
		s.Language = string(v.(String))
	case SettingFontSize:
		s.FontSize = string(v.(String))
	case SettingReducedMotion:
		s.ReducedMotion = bool(v.(Bool))
	}
	return s
}
