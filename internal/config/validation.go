package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is reports ErrInvalidConfig so callers can match any validation failure.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ValidateConfig checks every section and collects all problems found.
func ValidateConfig(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateScanner(&c.Scanner)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateHTTP(&c.HTTP)...)
	errs = append(errs, validateNotify(&c.Notify)...)
	errs = append(errs, validateGUI(&c.GUI)...)

	return errs
}

func validateScanner(s *ScannerConfig) ValidationErrors {
	var errs ValidationErrors

	if s.TimeoutMs < 10 || s.TimeoutMs > 5000 {
		errs = append(errs, *RangeError("scanner.timeout_ms", 10, 5000))
	}

	if s.Device != "" {
		if _, err := os.Stat(expandPath(s.Device)); err != nil {
			errs = append(errs, ValidationError{
				Field:   "scanner.device",
				Message: fmt.Sprintf("device not accessible: %v", err),
			})
		}
	}

	return errs
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Path == "" {
		errs = append(errs, *RequiredFieldError("storage.path"))
	}
	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateHTTP(h *HTTPConfig) ValidationErrors {
	if !h.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(h.Addr); err != nil {
		return ValidationErrors{{
			Field:   "http.addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", h.Addr, err),
		}}
	}
	return nil
}

func validateNotify(n *NotifyConfig) ValidationErrors {
	if n.TimeoutMs < 0 {
		return ValidationErrors{{
			Field:   "notify.timeout_ms",
			Message: "timeout cannot be negative",
		}}
	}
	return nil
}

func validateGUI(g *GUIConfig) ValidationErrors {
	var errs ValidationErrors

	if g.Width < 320 || g.Width > 8192 {
		errs = append(errs, *RangeError("gui.width", 320, 8192))
	}
	if g.Height < 240 || g.Height > 8192 {
		errs = append(errs, *RangeError("gui.height", 240, 8192))
	}
	if g.PhotoDir != "" {
		if info, err := os.Stat(expandPath(g.PhotoDir)); err != nil || !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "gui.photo_dir",
				Message: "photo directory does not exist",
			})
		}
	}

	return errs
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool {
	// Devices can be plugged in and photo folders created later.
	warningFields := []string{
		"scanner.device",
		"gui.photo_dir",
	}
	for _, f := range warningFields {
		if strings.HasPrefix(e.Field, f) {
			return true
		}
	}
	return false
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
