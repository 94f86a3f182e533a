package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

// Audit event types.
const (
	AuditEventStudentAdded   AuditEventType = "student_added"
	AuditEventStudentUpdated AuditEventType = "student_updated"
	AuditEventStudentDeleted AuditEventType = "student_deleted"
	AuditEventRosterImported AuditEventType = "roster_imported"
	AuditEventRosterExported AuditEventType = "roster_exported"
	AuditEventConfigChange   AuditEventType = "config_change"
	AuditEventStartup        AuditEventType = "startup"
	AuditEventShutdown       AuditEventType = "shutdown"
)

// AuditEvent records a change to the student roster or the application.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	Component string                 `json:"component"`
	Source    string                 `json:"source,omitempty"` // "cli", "api", "gui"
	Resource  string                 `json:"resource,omitempty"`
	Result    string                 `json:"result"` // "success", "failure"
	Details   map[string]interface{} `json:"details,omitempty"`
	Error     string                 `json:"error,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// AuditLoggerConfig holds configuration for the audit logger.
type AuditLoggerConfig struct {
	// FilePath is the path to the audit log file.
	FilePath string

	// MaxSize is the maximum size in MB before rotation.
	MaxSize int64

	// MaxAge is the maximum age in days before deletion.
	MaxAge int

	// MaxBackups is the maximum number of rotated files to keep.
	MaxBackups int

	// Compress determines if rotated logs should be compressed.
	Compress bool

	// Component is the component name for audit events.
	Component string
}

// AuditConfigFor returns an audit configuration that keeps audit.log next
// to the application log.
func AuditConfigFor(cfg *Config) *AuditLoggerConfig {
	return &AuditLoggerConfig{
		FilePath:   filepath.Join(filepath.Dir(cfg.FilePath), "audit.log"),
		MaxSize:    10,
		MaxAge:     365,
		MaxBackups: 10,
		Compress:   true,
		Component:  cfg.Component,
	}
}

// AuditLogger appends audit events as JSON lines.
type AuditLogger struct {
	config  *AuditLoggerConfig
	rotator *FileRotator
	mu      sync.Mutex
}

// NewAuditLogger creates a new AuditLogger.
func NewAuditLogger(cfg *AuditLoggerConfig) (*AuditLogger, error) {
	if cfg == nil {
		cfg = AuditConfigFor(DefaultConfig())
	}

	rotator, err := NewFileRotator(&Config{
		FilePath:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("create audit rotator: %w", err)
	}

	return &AuditLogger{
		config:  cfg,
		rotator: rotator,
	}, nil
}

// Log writes an audit event. A nil AuditLogger discards events.
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Component == "" {
		event.Component = a.config.Component
	}
	if event.RequestID == "" {
		event.RequestID = RequestIDFromContext(ctx)
	}
	if event.Result == "" {
		event.Result = "success"
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	data = append(data, '\n')
	if _, err := a.rotator.Write(data); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// LogStudentChange records an add, update or delete of one student.
func (a *AuditLogger) LogStudentChange(ctx context.Context, event AuditEventType, source, rollNumber string, err error) error {
	e := AuditEvent{
		EventType: event,
		Source:    source,
		Resource:  rollNumber,
	}
	if err != nil {
		e.Result = "failure"
		e.Error = err.Error()
	}
	return a.Log(ctx, e)
}

// LogImport records a roster import.
func (a *AuditLogger) LogImport(ctx context.Context, source, path string, count int) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventRosterImported,
		Source:    source,
		Resource:  path,
		Details:   map[string]interface{}{"students": count},
	})
}

// LogExport records a roster export.
func (a *AuditLogger) LogExport(ctx context.Context, source, path string, count int) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventRosterExported,
		Source:    source,
		Resource:  path,
		Details:   map[string]interface{}{"students": count},
	})
}

// LogConfigChange records a reloaded setting.
func (a *AuditLogger) LogConfigChange(ctx context.Context, setting, oldValue, newValue string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventConfigChange,
		Resource:  setting,
		Details: map[string]interface{}{
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

// LogStartup records application startup.
func (a *AuditLogger) LogStartup(ctx context.Context, version string, details map[string]interface{}) error {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["version"] = version
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventStartup,
		Details:   details,
	})
}

// LogShutdown records application shutdown.
func (a *AuditLogger) LogShutdown(ctx context.Context, reason string) error {
	return a.Log(ctx, AuditEvent{
		EventType: AuditEventShutdown,
		Details:   map[string]interface{}{"reason": reason},
	})
}

// Close closes the audit logger.
func (a *AuditLogger) Close() error {
	if a == nil || a.rotator == nil {
		return nil
	}
	return a.rotator.Close()
}
