package watcher

import (
	"context"
	"fmt"
	"log/slog"

	"rollscan/internal/logging"
	"rollscan/internal/roster"
	"rollscan/internal/store"
)

// Importer is the part of the student store that receives dropped rosters.
type Importer interface {
	ImportStudents(ctx context.Context, students []store.Student) (int, error)
}

// ImportResult describes one processed roster file.
type ImportResult struct {
	Path     string
	Students int
	Skipped  bool
	Err      error
}

// RosterImporter imports each settled roster file into the store. A file
// whose contents were already imported is skipped.
type RosterImporter struct {
	store    Importer
	audit    *logging.AuditLogger
	logger   *slog.Logger
	imported map[string][32]byte
	onImport func(ImportResult)
}

// ImporterOption configures a RosterImporter.
type ImporterOption func(*RosterImporter)

// WithImportAudit records every import in the audit trail.
func WithImportAudit(a *logging.AuditLogger) ImporterOption {
	return func(ri *RosterImporter) {
		ri.audit = a
	}
}

// WithImportLogger sets the importer's logger.
func WithImportLogger(l *slog.Logger) ImporterOption {
	return func(ri *RosterImporter) {
		if l != nil {
			ri.logger = l
		}
	}
}

// OnImport registers a callback run after each processed file.
func OnImport(fn func(ImportResult)) ImporterOption {
	return func(ri *RosterImporter) {
		ri.onImport = fn
	}
}

// NewRosterImporter creates an importer writing to st.
func NewRosterImporter(st Importer, opts ...ImporterOption) *RosterImporter {
	ri := &RosterImporter{
		store:    st,
		logger:   logging.Discard(),
		imported: make(map[string][32]byte),
	}
	for _, opt := range opts {
		opt(ri)
	}
	return ri
}

// Handle imports the roster file described by ev.
func (ri *RosterImporter) Handle(ctx context.Context, ev Event) ImportResult {
	res := ImportResult{Path: ev.Path}

	if last, ok := ri.imported[ev.Path]; ok && last == ev.Hash {
		res.Skipped = true
		ri.logger.Debug("roster unchanged", "path", ev.Path)
		ri.report(res)
		return res
	}

	students, err := roster.DecodeFile(ev.Path)
	if err == nil {
		res.Students, err = ri.store.ImportStudents(ctx, students)
		if err != nil {
			err = fmt.Errorf("import %s: %w", ev.Path, err)
		}
	}
	res.Err = err

	if err != nil {
		ri.logger.Warn("roster import failed", "path", ev.Path, "error", err)
	} else {
		ri.imported[ev.Path] = ev.Hash
		ri.logger.Info("roster imported", "path", ev.Path, "students", res.Students)
		ri.audit.LogImport(ctx, "watcher", ev.Path, res.Students)
	}
	ri.report(res)
	return res
}

// Run handles events from w until ctx is done or the event channel closes.
func (ri *RosterImporter) Run(ctx context.Context, w *Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			ri.Handle(ctx, ev)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			ri.logger.Warn("roster watch error", "error", err)
		}
	}
}

func (ri *RosterImporter) report(res ImportResult) {
	if ri.onImport != nil {
		ri.onImport(res)
	}
}
