package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// CrashReport represents information about a crash.
type CrashReport struct {
	Timestamp    time.Time              `json:"timestamp"`
	Version      string                 `json:"version"`
	GOOS         string                 `json:"goos"`
	GOARCH       string                 `json:"goarch"`
	NumGoroutine int                    `json:"num_goroutine"`
	PanicValue   string                 `json:"panic_value"`
	StackTrace   string                 `json:"stack_trace"`
	Component    string                 `json:"component,omitempty"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// CrashHandler writes a JSON crash report for recovered panics.
type CrashHandler struct {
	mu        sync.Mutex
	crashDir  string
	version   string
	component string
	stderr    io.Writer
	onCrash   func(CrashReport)
}

// CrashHandlerConfig configures the crash handler.
type CrashHandlerConfig struct {
	// CrashDir is the directory to write crash dumps.
	CrashDir string

	// Version is the application version.
	Version string

	// Component is the component name.
	Component string

	// Stderr receives the crash summary. Defaults to os.Stderr.
	Stderr io.Writer

	// OnCrash is called after a crash is logged.
	OnCrash func(CrashReport)
}

// NewCrashHandler creates a new CrashHandler.
func NewCrashHandler(cfg *CrashHandlerConfig) *CrashHandler {
	if cfg == nil {
		cfg = &CrashHandlerConfig{}
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	return &CrashHandler{
		crashDir:  cfg.CrashDir,
		version:   cfg.Version,
		component: cfg.Component,
		stderr:    stderr,
		onCrash:   cfg.OnCrash,
	}
}

// Recover runs fn and turns a panic into a crash report.
func (h *CrashHandler) Recover(fn func()) {
	defer h.recover(nil)
	fn()
}

// RecoverGoroutine is designed to be deferred at the start of goroutines.
func (h *CrashHandler) RecoverGoroutine() {
	if r := recover(); r != nil {
		h.HandlePanic(r, map[string]interface{}{"type": "goroutine"})
	}
}

func (h *CrashHandler) recover(contextInfo map[string]interface{}) {
	if r := recover(); r != nil {
		h.HandlePanic(r, contextInfo)
	}
}

// HandlePanic records a crash report for panicValue.
func (h *CrashHandler) HandlePanic(panicValue interface{}, contextInfo map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprintf("%v", panicValue),
		StackTrace:   string(debug.Stack()),
		Component:    h.component,
		Context:      contextInfo,
	}

	path, err := h.writeCrashDump(report)

	if h.onCrash != nil {
		h.onCrash(report)
	}

	fmt.Fprintf(h.stderr, "\n=== CRASH REPORT ===\n")
	fmt.Fprintf(h.stderr, "Time: %s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(h.stderr, "Panic: %s\n", report.PanicValue)
	fmt.Fprintf(h.stderr, "Stack trace:\n%s\n", report.StackTrace)
	if err != nil {
		fmt.Fprintf(h.stderr, "Crash dump not written: %v\n", err)
	} else if path != "" {
		fmt.Fprintf(h.stderr, "Crash dump written to: %s\n", path)
	}
}

func (h *CrashHandler) writeCrashDump(report CrashReport) (string, error) {
	if h.crashDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(h.crashDir, 0750); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}

	name := fmt.Sprintf("crash-%s-%s.json",
		report.Component,
		report.Timestamp.Format("20060102-150405.000"))
	path := filepath.Join(h.crashDir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// GetCrashReports returns the crash reports in the crash directory.
func (h *CrashHandler) GetCrashReports() ([]CrashReport, error) {
	files, err := filepath.Glob(filepath.Join(h.crashDir, "crash-*.json"))
	if err != nil {
		return nil, err
	}

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// CleanupOldCrashReports removes crash reports older than maxAge.
func (h *CrashHandler) CleanupOldCrashReports(maxAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(h.crashDir, "crash-*.json"))
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
	return nil
}
