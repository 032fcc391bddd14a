package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDirName is the directory under the user config dir holding drivectl files.
const ConfigDirName = "drivectl"

// ConfigDirectory returns the platform config directory for drivectl.
//
// Locations:
//   - Windows: %APPDATA%\drivectl
//   - Unix: ~/.config/drivectl
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ConfigDirName)
		}
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(homeDir, ".config", ConfigDirName)
	}
	return filepath.Join(configDir, ConfigDirName)
}

// DefaultConfigPath returns where config.yaml lives by default. It falls back
// to the working directory when no config directory can be determined.
func DefaultConfigPath() string {
	dir := ConfigDirectory()
	if dir == "" {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}

// LogDirectory returns the directory used for relative log_file paths.
func LogDirectory() string {
	dir := ConfigDirectory()
	if dir == "" {
		return filepath.Join(os.TempDir(), "drivectl-logs")
	}
	return filepath.Join(dir, "logs")
}

// ResolveLogFile makes a relative log_file path relative to LogDirectory.
func ResolveLogFile(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(LogDirectory(), path)
}
