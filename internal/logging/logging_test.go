package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rollscan/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil || parsed != level {
			t.Errorf("level %v did not round trip through %q", level, LevelString(level))
		}
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.LoggingConfig{
		Level:      "debug",
		Format:     "JSON",
		Output:     "file",
		FilePath:   "/var/log/rollscan.log",
		MaxSizeMB:  5,
		MaxBackups: 2,
		MaxAgeDays: 9,
		Compress:   true,
	}, "scanner")

	if cfg.Level != LevelDebug {
		t.Errorf("expected debug, got %v", cfg.Level)
	}
	if cfg.Format != FormatJSON {
		t.Error("expected JSON format")
	}
	if cfg.MaxSize != 5 || cfg.MaxBackups != 2 || cfg.MaxAge != 9 || !cfg.Compress {
		t.Errorf("rotation settings not copied: %+v", cfg)
	}
	if cfg.Component != "scanner" {
		t.Errorf("expected component scanner, got %s", cfg.Component)
	}

	if FromSettings(config.LoggingConfig{Level: "loud"}, "").Level != LevelInfo {
		t.Error("unknown level should fall back to info")
	}
}

func newBufferLogger(t *testing.T, format Format) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     LevelInfo,
		Format:    format,
		Output:    "stderr",
		Writer:    &buf,
		Component: "test",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return logger, &buf
}

func TestJSONFormat(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatJSON)
	defer logger.Close()

	logger.Info("student found", "roll_number", "CS001", "api_key", "abc123")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if entry["msg"] != "student found" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "test" {
		t.Errorf("expected component attribute, got %v", entry["component"])
	}
	if entry["roll_number"] != "CS001" {
		t.Errorf("expected roll_number attribute, got %v", entry["roll_number"])
	}
	if entry["api_key"] != "[REDACTED]" {
		t.Errorf("api_key should be redacted, got %v", entry["api_key"])
	}
}

func TestSetLevelAffectsDerivedLoggers(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatText)
	child := logger.WithComponent("lookup")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info: %s", buf.String())
	}

	logger.SetLevel(LevelDebug)
	if logger.Level() != LevelDebug {
		t.Errorf("expected debug level, got %v", logger.Level())
	}

	child.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("derived logger should follow the shared level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "component=lookup") {
		t.Errorf("expected component attribute: %s", buf.String())
	}
}

func TestLoggerWithRequestID(t *testing.T) {
	logger, buf := newBufferLogger(t, FormatText)

	id := NewRequestID()
	if len(id) != 36 {
		t.Errorf("expected a UUID, got %q", id)
	}
	if id == NewRequestID() {
		t.Error("request IDs should be unique")
	}

	ctx := ContextWithRequestID(context.Background(), id)
	logger.WithContext(ctx).Info("handled")

	if !strings.Contains(buf.String(), "request_id="+id) {
		t.Errorf("expected request_id in output: %s", buf.String())
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if got := RequestIDFromContext(nil); got != "" { //nolint:staticcheck
		t.Errorf("expected empty ID from nil context, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty ID, got %q", got)
	}
	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("expected req-1, got %q", got)
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key    string
		redact bool
	}{
		{"password", true},
		{"API_KEY", true},
		{"auth_header", true},
		{"roll_number", false},
		{"student", false},
		{"device", false},
	}

	for _, test := range tests {
		if got := shouldRedact(test.key); got != test.redact {
			t.Errorf("shouldRedact(%q) = %v, want %v", test.key, got, test.redact)
		}
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "rollscan.log")
	logger, err := New(&Config{
		Level:      LevelInfo,
		Output:     "file",
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("scanner started", "device", "/dev/input/event5")
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "scanner started") {
		t.Errorf("log file missing entry: %s", data)
	}
}

func TestFileRotatorRotatesBySize(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "scan.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 5,
		Compress:   true,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	line := []byte(strings.Repeat("x", 1023) + "\n")
	for i := 0; i < 1100; i++ {
		if _, err := rotator.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := rotator.GetLogFiles()
	if err != nil {
		t.Fatalf("GetLogFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected current file plus one backup, got %v", files)
	}
	if !strings.HasSuffix(files[1], ".log.gz") {
		t.Errorf("rotated file should be compressed: %s", files[1])
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() >= 1024*1024 {
		t.Errorf("current log should have been rotated, size %d", info.Size())
	}
}

func TestFileRotatorRotatesDaily(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "scan.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 10, MaxBackups: 3})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	rotator.now = func() time.Time { return day }
	rotator.lastTime = day

	rotator.Write([]byte("before midnight\n"))
	day = day.Add(2 * time.Minute)
	rotator.Write([]byte("after midnight\n"))
	rotator.Close()

	files, _ := rotator.GetLogFiles()
	if len(files) != 2 {
		t.Fatalf("expected a rotation at the day boundary, got %v", files)
	}
	data, _ := os.ReadFile(logPath)
	if string(data) != "after midnight\n" {
		t.Errorf("unexpected current log: %q", data)
	}
}

func TestFileRotatorKeepsMaxBackups(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "scan.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 10, MaxBackups: 2})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	rotator.now = func() time.Time { return now }
	rotator.lastTime = now

	for i := 0; i < 5; i++ {
		rotator.Write([]byte("entry\n"))
		now = now.AddDate(0, 0, 1)
		rotator.background.Wait()
	}
	rotator.Close()

	files, _ := rotator.GetLogFiles()
	if len(files) != 3 {
		t.Errorf("expected current file plus 2 backups, got %v", files)
	}
}

func TestAuditLogger(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	audit, err := NewAuditLogger(&AuditLoggerConfig{
		FilePath:   auditPath,
		MaxSize:    1,
		MaxBackups: 1,
		Component:  "rollscan",
	})
	if err != nil {
		t.Fatalf("failed to create audit logger: %v", err)
	}

	ctx := ContextWithRequestID(context.Background(), "req-9")
	if err := audit.LogStudentChange(ctx, AuditEventStudentAdded, "api", "CS003", nil); err != nil {
		t.Fatalf("log add: %v", err)
	}
	if err := audit.LogStudentChange(ctx, AuditEventStudentDeleted, "cli", "ZZ1", errors.New("student not found")); err != nil {
		t.Fatalf("log delete: %v", err)
	}
	if err := audit.LogImport(context.Background(), "cli", "roster.yaml", 12); err != nil {
		t.Fatalf("log import: %v", err)
	}
	if err := audit.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(auditPath)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid audit line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].EventType != AuditEventStudentAdded || events[0].Resource != "CS003" ||
		events[0].Result != "success" || events[0].RequestID != "req-9" || events[0].Component != "rollscan" {
		t.Errorf("unexpected add event: %+v", events[0])
	}
	if events[1].Result != "failure" || events[1].Error != "student not found" {
		t.Errorf("unexpected delete event: %+v", events[1])
	}
	if events[2].Details["students"] != float64(12) {
		t.Errorf("unexpected import details: %+v", events[2].Details)
	}
}

func TestNilAuditLogger(t *testing.T) {
	var audit *AuditLogger
	if err := audit.LogExport(context.Background(), "cli", "out.json", 3); err != nil {
		t.Errorf("nil audit logger should discard: %v", err)
	}
	if err := audit.Close(); err != nil {
		t.Errorf("nil close: %v", err)
	}
}

func TestCrashHandler(t *testing.T) {
	tmpDir := t.TempDir()
	var stderr bytes.Buffer
	var seen []CrashReport

	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  tmpDir,
		Version:   "1.0.0",
		Component: "rollscan-gui",
		Stderr:    &stderr,
		OnCrash:   func(r CrashReport) { seen = append(seen, r) },
	})

	ran := false
	handler.Recover(func() {
		ran = true
		panic("photo decoder exploded")
	})
	if !ran {
		t.Fatal("function did not run")
	}

	reports, err := handler.GetCrashReports()
	if err != nil {
		t.Fatalf("failed to get crash reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 crash report, got %d", len(reports))
	}
	if reports[0].PanicValue != "photo decoder exploded" || reports[0].Version != "1.0.0" {
		t.Errorf("unexpected report: %+v", reports[0])
	}
	if len(seen) != 1 {
		t.Error("OnCrash was not called")
	}
	if !strings.Contains(stderr.String(), "=== CRASH REPORT ===") {
		t.Errorf("expected crash summary on stderr: %s", stderr.String())
	}

	if err := handler.CleanupOldCrashReports(-time.Second); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	reports, _ = handler.GetCrashReports()
	if len(reports) != 0 {
		t.Error("old crash reports were not removed")
	}
}
