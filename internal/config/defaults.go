package config

import (
	"os"
	"path/filepath"

	"auto-typer/internal/domain"
)

// AppDirName is the per-user directory holding settings and logs.
const AppDirName = ".auto-typer"

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		StartDelaySeconds:     5,
		InterCharDelaySeconds: 0.05,
		LineEndDelaySeconds:   1,
		SoundEnabled:          false,
		Volume:                0.5,
		LoggingEnabled:        false,
		LogPath:               filepath.Join(homeDir, AppDirName, "autotyper.log"),
	}
}

// SettingsPath returns the settings file location under homeDir.
func SettingsPath(homeDir string) string {
	return filepath.Join(homeDir, AppDirName, "settings.json")
}
