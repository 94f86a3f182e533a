// rollscan-gui shows the student looked up by each barcode scan.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"rollscan/cmd/rollscan-gui/internal/theme"
	"rollscan/cmd/rollscan-gui/internal/ui"
	rollscan "rollscan/internal/app"
	"rollscan/internal/config"
	"rollscan/internal/lookup"
)

func main() {
	configPath := flag.String("config", "", "Configuration file (default: platform config dir)")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	a, err := rollscan.New(cfg, "gui")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	go func() {
		defer a.Crash.RecoverGoroutine()

		w := new(app.Window)
		w.Option(app.Title(cfg.GUI.Title))
		w.Option(app.Size(unit.Dp(cfg.GUI.Width), unit.Dp(cfg.GUI.Height)))

		err := loop(w, a, loader)
		loader.Close()
		if cerr := a.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
}

func loop(w *app.Window, a *rollscan.App, loader *config.Loader) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := a.Logger.WithComponent("gui").Logger

	// Start reports initialization failures through the status bar.
	if err := a.Start(ctx); err != nil {
		logger.Error("start failed", "error", err)
	}

	unsubscribe := a.Controller.Subscribe(func(lookup.State) {
		w.Invalidate()
	})
	defer unsubscribe()

	photos := ui.NewPhotoCache(a.Config.GUI.PhotoDir)
	loader.OnChange(func(old, next *config.Config) {
		a.ApplyConfig(ctx, old, next)
		photos.SetDir(next.GUI.PhotoDir)
		w.Invalidate()
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config file not watched", "path", loader.Path(), "error", err)
	}

	t := theme.NewTheme(material.NewTheme())
	view := ui.NewLookupView(t, a.Controller, a.Buffer, photos, logger)

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			view.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}
