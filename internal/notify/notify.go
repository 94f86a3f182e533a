// Package notify posts desktop notifications for lookup results.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"rollscan/internal/lookup"
)

// Config controls desktop notifications.
type Config struct {
	Enabled bool
	AppName string
	// Timeout is how long a notification stays visible. Zero lets the
	// notification server decide.
	Timeout time.Duration
}

// Noop discards notifications.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, lookup.Result) error { return nil }

var _ lookup.Notifier = Noop{}

// Format renders the summary and body for a lookup result.
func Format(r lookup.Result) (summary, body string) {
	switch {
	case r.Err != nil:
		return "Lookup failed", lookup.StatusError
	case r.Student != nil:
		s := r.Student
		parts := []string{s.RollNumber}
		if s.Course != "" {
			parts = append(parts, s.Course)
		}
		if s.Year > 0 {
			parts = append(parts, fmt.Sprintf("Year %d", s.Year))
		}
		if s.Status != "" {
			parts = append(parts, s.Status)
		}
		return lookup.StatusFound(s.FullName()), strings.Join(parts, " · ")
	default:
		return "Student not found", lookup.StatusNotFound(r.RollNumber)
	}
}

// New returns the platform notifier when enabled and reachable, and Noop
// otherwise.
func New(cfg Config, logger *slog.Logger) lookup.Notifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !cfg.Enabled {
		return Noop{}
	}
	if cfg.AppName == "" {
		cfg.AppName = "rollscan"
	}

	n, err := newPlatformNotifier(cfg)
	if err != nil {
		logger.Warn("desktop notifications unavailable", "error", err)
		return Noop{}
	}
	return n
}
