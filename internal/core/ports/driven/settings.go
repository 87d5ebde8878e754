package driven

import "github.com/regcap-labs/regcap/internal/core/domain"

// SettingsStore persists application settings between runs.
type SettingsStore interface {
	// Load reads settings from storage. When no settings have been
	// saved yet it returns defaults.
	Load() (domain.Settings, error)

	// Save persists settings to storage.
	Save(settings domain.Settings) error

	// Path returns the location settings are stored at, for display.
	Path() string
}
