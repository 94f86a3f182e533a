// rollscan - barcode scanner student lookup
//
//	rollscan run              Listen to a barcode scanner and look up students
//	rollscan lookup <roll>    Look up one roll number
//	rollscan list             List the student roster
//	rollscan pick             Fuzzy-find a student
//	rollscan import <file>    Import a JSON or YAML roster
//	rollscan export [file]    Export the roster
//	rollscan devices          List candidate scanner devices
//	rollscan status           Show configuration and database status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"rollscan/internal/app"
	"rollscan/internal/config"
	"rollscan/internal/store"
)

// env carries the global options and output streams of one invocation.
type env struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
}

type command struct {
	run  func(ctx context.Context, e *env, args []string) error
	help string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"init":    {cmdInit, "Write a default configuration file"},
		"run":     {cmdRun, "Listen to a barcode scanner and look up students"},
		"lookup":  {cmdLookup, "Look up a student by roll number"},
		"list":    {cmdList, "List all students"},
		"add":     {cmdAdd, "Add a student"},
		"delete":  {cmdDelete, "Delete a student"},
		"import":  {cmdImport, "Import a JSON or YAML roster"},
		"export":  {cmdExport, "Export the roster as JSON or YAML"},
		"pick":    {cmdPick, "Fuzzy-find a student interactively"},
		"scans":   {cmdScans, "Show recent scan history"},
		"devices": {cmdDevices, "List keyboard-like input devices"},
		"status":  {cmdStatus, "Show configuration and database status"},
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("rollscan", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "Configuration file (default: platform config dir)")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr)
		return 1
	}

	name := rest[0]
	switch name {
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
		usage(stderr)
		return 1
	}

	e := &env{
		configPath: *configPath,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
	}
	if err := cmd.run(context.Background(), e, rest[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `rollscan - Barcode Scanner Student Lookup

USAGE:
    rollscan [-config file] <command> [options]

COMMANDS:`)
	for _, name := range []string{"init", "run", "lookup", "list", "add", "delete", "import", "export", "pick", "scans", "devices", "status"} {
		fmt.Fprintf(w, "    %-10s %s\n", name, commands[name].help)
	}
	fmt.Fprintln(w, `    help       Show this help message

EXAMPLES:
    rollscan run                     # read the scanner found in /proc/bus/input
    rollscan run -stdin              # one roll number per line on stdin
    rollscan run -http 127.0.0.1:8787
    rollscan lookup CS001
    rollscan import roster.yaml

Configuration is read from TOML, JSON or YAML. ROLLSCAN_* environment
variables override file settings.`)
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(e *env, name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: rollscan %s %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func (e *env) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openApp loads the configuration and opens the store, seeding the sample
// roster into an empty database when configured.
func (e *env) openApp(ctx context.Context) (*app.App, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, "cli", app.WithLogWriter(e.stderr))
	if err != nil {
		return nil, err
	}
	if cfg.Storage.SeedSampleData {
		if _, err := a.Store.SeedSampleData(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed sample data: %w", err)
		}
	}
	return a, nil
}

func printStudent(w io.Writer, s *store.Student) {
	fmt.Fprintf(w, "=== %s ===\n", s.FullName())
	fmt.Fprintf(w, "Roll number:  %s\n", s.RollNumber)
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-13s %s\n", label+":", value)
		}
	}
	field("Course", s.Course)
	field("Department", s.Department)
	if s.Year > 0 {
		field("Year", fmt.Sprintf("%d", s.Year))
	}
	field("Email", s.Email)
	field("Phone", s.PhoneNumber)
	field("Status", s.Status)
	if !s.EnrollmentDate.IsZero() {
		field("Enrolled", s.EnrollmentDate.Format("2006-01-02"))
	}
	field("Photo", s.PhotoPath)
}

func timestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func requireArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() < 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		fs.Usage()
		return "", fmt.Errorf("missing %s", what)
	}
	return strings.TrimSpace(fs.Arg(0)), nil
}
