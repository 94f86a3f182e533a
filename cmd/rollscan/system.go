package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"rollscan/internal/config"
	"rollscan/internal/keysource"
	"rollscan/internal/store"
)

func cmdDevices(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "devices", "[-json]")
	asJSON := fs.Bool("json", false, "Print devices as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	devices, err := keysource.Discover()
	if err != nil {
		return err
	}
	if *asJSON {
		if devices == nil {
			devices = []keysource.Device{}
		}
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}
	if len(devices) == 0 {
		fmt.Fprintln(e.stdout, "No keyboard-like input devices found.")
		return nil
	}

	for _, d := range devices {
		marker := " "
		if d.LooksLikeScanner() {
			marker = "*"
		}
		fmt.Fprintf(e.stdout, "%s %-20s %s\n", marker, d.Path, d.Name)
	}
	fmt.Fprintln(e.stdout, "\n* looks like a barcode scanner")
	return nil
}

func cmdStatus(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "status", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := e.configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintln(e.stdout, "=== rollscan Status ===")
	fmt.Fprintln(e.stdout)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(e.stdout, "Config file:     %s\n", path)
	} else {
		fmt.Fprintf(e.stdout, "Config file:     %s (not found, using defaults)\n", path)
	}
	for _, w := range config.ValidateConfig(cfg).Warnings() {
		fmt.Fprintf(e.stdout, "  warning: %s\n", w.Error())
	}
	fmt.Fprintf(e.stdout, "Data directory:  %s\n", config.RollscanDir())
	fmt.Fprintf(e.stdout, "Database:        %s\n", cfg.Storage.Path)

	if _, err := os.Stat(cfg.Storage.Path); err == nil {
		st, err := store.OpenWithOptions(cfg.Storage.Path, store.Options{BusyTimeout: cfg.BusyTimeout()})
		if err != nil {
			return fmt.Errorf("open student store: %w", err)
		}
		defer st.Close()

		n, err := st.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "Students:        %d\n", n)

		scans, err := st.RecentScans(ctx, 1)
		if err != nil {
			return err
		}
		if len(scans) > 0 {
			fmt.Fprintf(e.stdout, "Last scan:       %s at %s\n", scans[0].RollNumber, timestamp(scans[0].ScannedAt))
		} else {
			fmt.Fprintln(e.stdout, "Last scan:       none")
		}
	} else {
		fmt.Fprintln(e.stdout, "Students:        database not created yet")
	}

	fmt.Fprintln(e.stdout)
	fmt.Fprintf(e.stdout, "Scan timeout:    %s\n", cfg.ScanTimeout())
	fmt.Fprintf(e.stdout, "HTTP API:        %s\n", onOff(cfg.HTTP.Enabled, cfg.HTTP.Addr))
	fmt.Fprintf(e.stdout, "Notifications:   %s\n", onOff(cfg.Notify.Enabled, ""))

	if runtime.GOOS == "linux" {
		devices, _ := keysource.Discover()
		if dev, ok := keysource.SelectScanner(devices, cfg.Scanner.Device); ok {
			_, reason := keysource.NewEvdevSource(dev.Path, cfg.Scanner.Grab, nil).Available()
			fmt.Fprintf(e.stdout, "Scanner device:  %s (%s)\n", dev.Path, reason)
		} else {
			fmt.Fprintln(e.stdout, "Scanner device:  none detected")
		}
	} else {
		fmt.Fprintln(e.stdout, "Scanner device:  evdev not available on this platform")
	}
	return nil
}

func onOff(on bool, detail string) string {
	if !on {
		return "disabled"
	}
	if detail != "" {
		return "enabled (" + detail + ")"
	}
	return "enabled"
}
