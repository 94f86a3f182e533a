package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "rollscan"

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/rollscan/
//   - Linux:   ~/.local/share/rollscan/
//   - Windows: %APPDATA%\rollscan\
//
// Falls back to ~/.rollscan if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return linuxDataDir()
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/rollscan/
//   - Linux:   ~/.config/rollscan/
//   - Windows: %APPDATA%\rollscan\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return linuxConfigDir()
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/rollscan/
//   - Linux:   ~/.local/share/rollscan/logs/
//   - Windows: %LOCALAPPDATA%\rollscan\logs\
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Logs", appName)
	case "linux":
		return filepath.Join(linuxDataDir(), "logs")
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, appName, "logs")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Local", appName, "logs")
	default:
		return filepath.Join(fallbackDataDir(), "logs")
	}
}

func macOSDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Application Support", appName)
}

// Linux paths follow the XDG Base Directory Specification.

func linuxDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

func linuxConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

func windowsDataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "AppData", "Roaming", appName)
}

func fallbackDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+appName)
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	// Search order: current directory, config directory, data directory.
	searchDirs := []string{
		".",
		PlatformConfigDir(),
		RollscanDir(),
	}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, appName+"."+ext)
			if dir != "." {
				path = filepath.Join(dir, "config."+ext)
			}
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}
