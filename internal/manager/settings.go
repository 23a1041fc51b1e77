package manager

import (
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

const settingsName = "settings"

// SettingsTrump replaces the whole section with the more recently updated
// copy. Fields are never mixed across copies.
var SettingsTrump = trump.Table{trump.Whole: trump.LatestTimestamp}

// SettingsManager owns user preferences.
type SettingsManager struct {
	data model.Settings
}

// NewSettingsManager copies s.
func NewSettingsManager(s model.Settings) *SettingsManager {
	return &SettingsManager{data: s}
}

// Snapshot returns the current settings.
func (m *SettingsManager) Snapshot() model.Settings {
	return m.data
}

// ValidateSet checks a setSetting call without applying it.
func ValidateSet(key string, v model.Value) error {
	if err := model.ValidateSetting(key, v); err != nil {
		return invalid(settingsName, "setSetting", "%v", err)
	}
	return nil
}

// Set changes one setting and stamps the section with now.
func (m *SettingsManager) Set(key string, v model.Value, now int64) error {
	if err := ValidateSet(key, v); err != nil {
		return err
	}
	m.data = m.data.WithSetting(key, v)
	m.data.LastUpdated = now
	return nil
}
