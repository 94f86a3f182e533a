// Package app assembles the scan buffer, the student store and the lookup
// controller from a configuration, for the CLI and the desktop window alike.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"rollscan/internal/config"
	"rollscan/internal/health"
	"rollscan/internal/logging"
	"rollscan/internal/lookup"
	"rollscan/internal/metrics"
	"rollscan/internal/notify"
	"rollscan/internal/scanbuf"
	"rollscan/internal/store"
)

// Version is reported in audit and crash records.
const Version = "1.0.0"

// App holds the wired components of a running instance.
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Audit      *logging.AuditLogger
	Crash      *logging.CrashHandler
	Store      *store.Store
	Buffer     *scanbuf.Buffer
	Metrics    *metrics.ScanMetrics
	Controller *lookup.Controller
	Health     *health.Checker
}

type options struct {
	logWriter io.Writer
	noAudit   bool
	clock     scanbuf.Clock
}

// Option configures New.
type Option func(*options)

// WithLogWriter sends stdout/stderr log output to w.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithoutAudit skips the audit log.
func WithoutAudit() Option {
	return func(o *options) {
		o.noAudit = true
	}
}

// WithClock sets the scan buffer's time source.
func WithClock(c scanbuf.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New opens the store and builds every component. The controller is not
// started; call Start.
func New(cfg *config.Config, component string, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	logCfg := logging.FromSettings(cfg.Logging, component)
	logCfg.Writer = o.logWriter
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Crash: logging.NewCrashHandler(&logging.CrashHandlerConfig{
			CrashDir:  filepath.Join(config.RollscanDir(), "crashes"),
			Version:   Version,
			Component: component,
		}),
	}

	if !o.noAudit {
		audit, err := logging.NewAuditLogger(logging.AuditConfigFor(logCfg))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Audit = audit
	}

	st, err := store.OpenWithOptions(cfg.Storage.Path, store.Options{
		BusyTimeout: cfg.BusyTimeout(),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open student store: %w", err)
	}
	a.Store = st

	a.Metrics = metrics.NewScanMetrics(metrics.NewRegistry("rollscan", ""))

	bufOpts := []scanbuf.Option{
		scanbuf.WithTimeout(cfg.ScanTimeout()),
		scanbuf.WithLogger(logger.WithComponent("scanbuf").Logger),
		scanbuf.WithObserver(a.Metrics),
	}
	if o.clock != nil {
		bufOpts = append(bufOpts, scanbuf.WithClock(o.clock))
	}
	a.Buffer = scanbuf.New(bufOpts...)

	notifier := notify.New(notify.Config{
		Enabled: cfg.Notify.Enabled,
		AppName: "rollscan",
		Timeout: cfg.NotifyTimeout(),
	}, logger.WithComponent("notify").Logger)

	a.Controller = lookup.New(a.Buffer, st,
		lookup.WithLogger(logger.WithComponent("lookup").Logger),
		lookup.WithMetrics(a.Metrics),
		lookup.WithNotifier(notifier),
		lookup.WithSeedSampleData(cfg.Storage.SeedSampleData),
	)

	a.Health = health.NewChecker()
	a.Health.RegisterFunc("database", true, health.DatabaseCheck(st.Ping))
	a.Health.RegisterFunc("scanner", false, health.ScannerCheck(a.Buffer.IsListening))
	if cfg.GUI.PhotoDir != "" {
		a.Health.RegisterFunc("photos", false, health.DirectoryCheck(cfg.GUI.PhotoDir))
	}

	return a, nil
}

// Start initializes the database and begins listening, then applies the
// configured initial scanner state.
func (a *App) Start(ctx context.Context) error {
	if err := a.Controller.Start(ctx); err != nil {
		a.Health.SetReady(false)
		return err
	}
	if !a.Config.Scanner.StartListening {
		a.Controller.StopScanning()
	}
	a.Health.SetReady(true)
	a.Audit.LogStartup(ctx, Version, map[string]interface{}{
		"database":   a.Store.Path(),
		"timeout_ms": a.Config.Scanner.TimeoutMs,
	})
	return nil
}

// ApplyConfig takes over the settings that can change while running: the
// log level and the scan timeout. Other changes need a restart and are
// only logged.
func (a *App) ApplyConfig(ctx context.Context, old, next *config.Config) {
	if old.Logging.Level != next.Logging.Level {
		if level, err := logging.ParseLevel(next.Logging.Level); err == nil {
			a.Logger.SetLevel(level)
			a.Audit.LogConfigChange(ctx, "logging.level", old.Logging.Level, next.Logging.Level)
		}
	}
	if old.Scanner.TimeoutMs != next.Scanner.TimeoutMs {
		a.Buffer.SetTimeout(next.ScanTimeout())
		a.Audit.LogConfigChange(ctx, "scanner.timeout_ms",
			strconv.Itoa(old.Scanner.TimeoutMs), strconv.Itoa(next.Scanner.TimeoutMs))
	}
	if old.Storage.Path != next.Storage.Path || old.HTTP != next.HTTP || old.Scanner.Device != next.Scanner.Device {
		a.Logger.Warn("configuration change needs a restart to take effect")
	}
	a.Config = next
	a.Logger.Info("configuration reloaded")
}

// Close stops the controller and releases every resource.
func (a *App) Close() error {
	var errs []error
	if a.Controller != nil {
		a.Controller.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.Audit != nil {
		a.Audit.LogShutdown(context.Background(), "closed")
		if err := a.Audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit log: %w", err))
		}
	}
	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger: %w", err))
		}
	}
	return errors.Join(errs...)
}
