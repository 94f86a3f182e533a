package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"rollscan/internal/api"
	"rollscan/internal/app"
	"rollscan/internal/config"
	"rollscan/internal/keysource"
	"rollscan/internal/lookup"
	"rollscan/internal/watcher"
)

func cmdRun(ctx context.Context, e *env, args []string) (err error) {
	fs := newFlagSet(e, "run", "[-stdin] [-device path] [-grab] [-http addr] [-roster-dir dir]")
	fromStdin := fs.Bool("stdin", false, "Read roll numbers from stdin, one per line")
	device := fs.String("device", "", "Input device (overrides scanner.device)")
	grab := fs.Bool("grab", false, "Grab the input device exclusively")
	httpAddr := fs.String("http", "", "Serve the HTTP API on this address")
	noWatch := fs.Bool("no-watch", false, "Do not reload the configuration file on change")
	rosterDir := fs.String("roster-dir", "", "Import roster files dropped into this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(e.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()

	if *device != "" {
		cfg.Scanner.Device = *device
	}
	if *grab {
		cfg.Scanner.Grab = true
	}
	if *httpAddr != "" {
		cfg.HTTP.Enabled = true
		cfg.HTTP.Addr = *httpAddr
	}

	a, err := app.New(cfg, "rollscan", app.WithLogWriter(e.stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	defer func() {
		if r := recover(); r != nil {
			a.Crash.HandlePanic(r, map[string]interface{}{"command": "run"})
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	logger := a.Logger.WithComponent("run")

	source, err := selectSource(e, cfg, *fromStdin)
	if err != nil {
		return err
	}
	if ok, reason := source.Available(); !ok {
		return fmt.Errorf("%w: %s", keysource.ErrNotAvailable, reason)
	}

	out := &syncWriter{w: e.stdout}
	unsubscribe := a.Controller.Subscribe(stateReporter(out))
	defer unsubscribe()

	if err := a.Start(ctx); err != nil {
		return err
	}

	if !*noWatch {
		loader.OnChange(func(old, next *config.Config) {
			a.ApplyConfig(ctx, old, next)
		})
		if err := loader.Watch(); err != nil {
			logger.Warn("config file not watched", "path", loader.Path(), "error", err)
		} else {
			go func() {
				defer a.Crash.RecoverGoroutine()
				for {
					select {
					case <-ctx.Done():
						return
					case err := <-loader.Errors():
						logger.Warn("config reload rejected", "error", err)
					}
				}
			}()
		}
	}

	if *rosterDir != "" {
		rw, err := watcher.New([]string{*rosterDir}, watcher.DefaultSettle)
		if err != nil {
			return fmt.Errorf("create roster watcher: %w", err)
		}
		if err := rw.Start(); err != nil {
			rw.Stop()
			return fmt.Errorf("watch %s: %w", *rosterDir, err)
		}
		defer rw.Stop()

		importer := watcher.NewRosterImporter(a.Store,
			watcher.WithImportAudit(a.Audit),
			watcher.WithImportLogger(a.Logger.WithComponent("roster").Logger),
			watcher.OnImport(func(res watcher.ImportResult) {
				if res.Err == nil && !res.Skipped {
					fmt.Fprintf(out, "Imported %d students from %s\n", res.Students, res.Path)
				}
			}),
		)
		go func() {
			defer a.Crash.RecoverGoroutine()
			importer.Run(ctx, rw)
		}()
		logger.Info("watching roster folder", "dir", *rosterDir)
	}

	httpErr := make(chan error, 1)
	if cfg.HTTP.Enabled {
		srv := api.New(a.Store, a.Controller,
			api.WithLogger(a.Logger.WithComponent("api").Logger),
			api.WithMetrics(a.Metrics),
			api.WithAudit(a.Audit),
			api.WithHealth(a.Health),
		)
		go func() {
			defer a.Crash.RecoverGoroutine()
			httpErr <- srv.ListenAndServe(ctx, cfg.HTTP.Addr)
		}()
	}

	if err := source.Start(ctx, a.Buffer); err != nil {
		return fmt.Errorf("start key source: %w", err)
	}
	defer source.Stop()
	logger.Info("waiting for scans", "timeout", a.Buffer.Timeout())

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-source.Done():
		a.Controller.Wait()
		if err := source.Err(); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
			return fmt.Errorf("key source stopped: %w", err)
		}
	case err := <-httpErr:
		if err != nil {
			return err
		}
	}
	return nil
}

// runSource is a key source whose read loop can be waited on.
type runSource interface {
	keysource.Source
	Done() <-chan struct{}
	Err() error
}

func selectSource(e *env, cfg *config.Config, fromStdin bool) (runSource, error) {
	if fromStdin {
		return keysource.NewReaderSource(e.stdin), nil
	}

	devices, err := keysource.Discover()
	if err != nil && cfg.Scanner.Device == "" {
		return nil, fmt.Errorf("discover input devices: %w", err)
	}
	dev, ok := keysource.SelectScanner(devices, cfg.Scanner.Device)
	if !ok {
		return nil, errors.New("no barcode scanner found; set scanner.device, pass -device or use -stdin")
	}
	return keysource.NewEvdevSource(dev.Path, cfg.Scanner.Grab, nil), nil
}

// stateReporter prints status changes and found students.
func stateReporter(w io.Writer) func(lookup.State) {
	var (
		mu   sync.Mutex
		last string
	)
	return func(s lookup.State) {
		mu.Lock()
		defer mu.Unlock()
		if s.StatusMessage == last {
			return
		}
		last = s.StatusMessage
		fmt.Fprintln(w, s.StatusMessage)
		if s.CurrentStudent != nil && !s.Searching {
			printStudent(w, s.CurrentStudent)
			fmt.Fprintln(w)
		}
	}
}

// syncWriter serializes writes from the lookup and roster goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
