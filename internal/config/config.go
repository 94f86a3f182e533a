// Package config handles configuration loading, validation, and management for rollscan.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete application configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Scanner configuration for the scan buffer and key source.
	Scanner ScannerConfig `toml:"scanner" json:"scanner" yaml:"scanner"`

	// Storage configuration for the student database.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// HTTP API configuration.
	HTTP HTTPConfig `toml:"http" json:"http" yaml:"http"`

	// Notify configuration for desktop notifications.
	Notify NotifyConfig `toml:"notify" json:"notify" yaml:"notify"`

	// GUI configuration for the desktop window.
	GUI GUIConfig `toml:"gui" json:"gui" yaml:"gui"`
}

// ScannerConfig holds scan buffer and key source configuration.
type ScannerConfig struct {
	// TimeoutMs is the maximum gap between keystrokes of one scan.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`

	// Device is the evdev device path. Empty selects a scanner-like device.
	Device string `toml:"device" json:"device" yaml:"device"`

	// Grab requests exclusive access to the device.
	Grab bool `toml:"grab" json:"grab" yaml:"grab"`

	// StartListening starts the scanner when the application starts.
	StartListening bool `toml:"start_listening" json:"start_listening" yaml:"start_listening"`
}

// StorageConfig holds student database configuration.
type StorageConfig struct {
	// Path is the SQLite database path.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is how long SQLite waits on a locked database.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// SeedSampleData inserts demo students into an empty database.
	SeedSampleData bool `toml:"seed_sample_data" json:"seed_sample_data" yaml:"seed_sample_data"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// HTTPConfig holds HTTP API configuration.
type HTTPConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" json:"addr" yaml:"addr"`
}

// NotifyConfig holds desktop notification configuration.
type NotifyConfig struct {
	Enabled   bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	TimeoutMs int  `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// GUIConfig holds desktop window configuration.
type GUIConfig struct {
	Title  string `toml:"title" json:"title" yaml:"title"`
	Width  int    `toml:"width" json:"width" yaml:"width"`
	Height int    `toml:"height" json:"height" yaml:"height"`

	// PhotoDir resolves relative student photo paths.
	PhotoDir string `toml:"photo_dir" json:"photo_dir" yaml:"photo_dir"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := RollscanDir()
	return &Config{
		Version: Version,
		Scanner: ScannerConfig{
			TimeoutMs:      100,
			StartListening: true,
		},
		Storage: StorageConfig{
			Path:           filepath.Join(dir, "students.db"),
			BusyTimeoutMs:  5000,
			SeedSampleData: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "rollscan.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8787",
		},
		Notify: NotifyConfig{
			Enabled:   false,
			TimeoutMs: 4000,
		},
		GUI: GUIConfig{
			Title:    "Student Lookup",
			Width:    1000,
			Height:   700,
			PhotoDir: filepath.Join(dir, "photos"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	if p := FindConfigFile(); p != "" {
		return p
	}
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	errs := ValidateConfig(c)
	if errs.HasErrors() {
		return errs.Errors()
	}
	return nil
}

// EnsureDirectories creates the directories the configured paths live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Storage.Path),
		c.GUI.PhotoDir,
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// RollscanDir returns the base rollscan data directory.
// Uses platform-specific paths or the ROLLSCAN_DATA_DIR environment override.
func RollscanDir() string {
	if envDir := os.Getenv("ROLLSCAN_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with ROLLSCAN_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	// Scanner overrides
	if v := os.Getenv("ROLLSCAN_SCANNER_DEVICE"); v != "" {
		c.Scanner.Device = v
	}
	if v, ok := envInt("ROLLSCAN_SCANNER_TIMEOUT_MS"); ok {
		c.Scanner.TimeoutMs = v
	}
	if v, ok := envBool("ROLLSCAN_SCANNER_GRAB"); ok {
		c.Scanner.Grab = v
	}

	// Storage overrides
	if v := os.Getenv("ROLLSCAN_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v, ok := envBool("ROLLSCAN_SEED_SAMPLE_DATA"); ok {
		c.Storage.SeedSampleData = v
	}

	// Logging overrides
	if v := os.Getenv("ROLLSCAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ROLLSCAN_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("ROLLSCAN_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// HTTP overrides
	if v := os.Getenv("ROLLSCAN_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v, ok := envBool("ROLLSCAN_HTTP_ENABLED"); ok {
		c.HTTP.Enabled = v
	}

	if v, ok := envBool("ROLLSCAN_NOTIFY_ENABLED"); ok {
		c.Notify.Enabled = v
	}
	if v := os.Getenv("ROLLSCAN_PHOTO_DIR"); v != "" {
		c.GUI.PhotoDir = v
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ScanTimeout returns the scanner timeout as a duration.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.Scanner.TimeoutMs) * time.Millisecond
}

// BusyTimeout returns the SQLite busy timeout as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Storage.BusyTimeoutMs) * time.Millisecond
}

// NotifyTimeout returns the notification display time as a duration.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutMs) * time.Millisecond
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
