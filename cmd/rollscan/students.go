package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"rollscan/internal/config"
	"rollscan/internal/logging"
	"rollscan/internal/lookup"
	"rollscan/internal/picker"
	"rollscan/internal/roster"
	"rollscan/internal/store"
)

func cmdInit(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "init", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := e.configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if created {
		fmt.Fprintf(e.stdout, "Created %s\n", path)
	} else {
		fmt.Fprintf(e.stdout, "Configuration already exists: %s\n", path)
	}
	fmt.Fprintf(e.stdout, "Database: %s\n", cfg.Storage.Path)
	return nil
}

func cmdLookup(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "lookup", "<roll-number> [-json]")
	asJSON := fs.Bool("json", false, "Print the student as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	roll, err := requireArg(fs, "roll number")
	if err != nil {
		return err
	}

	a, err := e.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Controller.Lookup(ctx, roll, store.SourceManual)
	if res.Err != nil {
		return fmt.Errorf("look up %s: %w", roll, res.Err)
	}
	if res.Student == nil {
		return fmt.Errorf("%s", lookup.StatusNotFound(roll))
	}

	if *asJSON {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(roster.FromStudent(*res.Student))
	}
	printStudent(e.stdout, res.Student)
	return nil
}

func cmdList(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "list", "[-json]")
	asJSON := fs.Bool("json", false, "Print the roster as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := e.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	students, err := a.Store.ListStudents(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return roster.Encode(e.stdout, students)
	}
	if len(students) == 0 {
		fmt.Fprintln(e.stdout, "No students.")
		return nil
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLL\tNAME\tCOURSE\tYEAR\tSTATUS")
	for _, s := range students {
		year := ""
		if s.Year > 0 {
			year = fmt.Sprintf("%d", s.Year)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.RollNumber, s.FullName(), s.Course, year, s.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "\n%d students\n", len(students))
	return nil
}

func cmdAdd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "add", "-roll <roll> -first <name> -last <name> [options]")
	var rec roster.Record
	fs.StringVar(&rec.RollNumber, "roll", "", "Roll number (required)")
	fs.StringVar(&rec.FirstName, "first", "", "First name (required)")
	fs.StringVar(&rec.LastName, "last", "", "Last name (required)")
	fs.StringVar(&rec.Email, "email", "", "Email address")
	fs.StringVar(&rec.Course, "course", "", "Course")
	fs.StringVar(&rec.Department, "department", "", "Department")
	fs.IntVar(&rec.Year, "year", 0, "Year of study")
	fs.StringVar(&rec.PhoneNumber, "phone", "", "Phone number")
	fs.StringVar(&rec.EnrollmentDate, "enrolled", "", "Enrollment date (YYYY-MM-DD)")
	fs.StringVar(&rec.Status, "status", store.StatusActive, "Status")
	fs.StringVar(&rec.PhotoPath, "photo", "", "Photo file, absolute or relative to gui.photo_dir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := rec.Student()
	if err != nil {
		return err
	}

	a, err := e.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.Store.AddStudent(ctx, &st)
	a.Audit.LogStudentChange(ctx, logging.AuditEventStudentAdded, "cli", st.RollNumber, err)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Added %s (%s)\n", st.FullName(), st.RollNumber)
	return nil
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "delete", "<roll-number>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	roll, err := requireArg(fs, "roll number")
	if err != nil {
		return err
	}

	a, err := e.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.Store.DeleteStudent(ctx, roll)
	a.Audit.LogStudentChange(ctx, logging.AuditEventStudentDeleted, "cli", roll, err)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Deleted %s\n", roll)
	return nil
}

func cmdImport(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "import", "<roster.json|roster.yaml>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := requireArg(fs, "roster file")
	if err != nil {
		return err
	}

	students, err := roster.DecodeFile(path)
	if err != nil {
		return err
	}

	a, err := e.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Store.ImportStudents(ctx, students)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	a.Audit.LogImport(ctx, "cli", path, n)
	fmt.Fprintf(e.stdout, "Imported %d students from %s\n", n, path)
	return nil
}

func cmdExport(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "export", "[file.json|file.yaml]")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := e.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	students, err := a.Store.ListStudents(ctx)
	if err != nil {
		return err
	}

	if fs.NArg() == 0 {
		return roster.Encode(e.stdout, students)
	}

	path := fs.Arg(0)
	if err := roster.EncodeFile(path, students); err != nil {
		return err
	}
	a.Audit.LogExport(ctx, "cli", path, len(students))
	fmt.Fprintf(e.stdout, "Exported %d students to %s\n", len(students), path)
	return nil
}

func cmdPick(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "pick", "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := e.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	students, err := a.Store.ListStudents(ctx)
	if err != nil {
		return err
	}

	st, err := picker.SelectStudent(students)
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintln(e.stdout, "No student selected.")
		return nil
	}
	printStudent(e.stdout, st)
	return nil
}

func cmdScans(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "scans", "[-limit N] [-json]")
	limit := fs.Int("limit", 20, "Number of scans to show")
	asJSON := fs.Bool("json", false, "Print the history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 1 {
		return fmt.Errorf("limit must be positive")
	}

	a, err := e.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scans, err := a.Store.RecentScans(ctx, *limit)
	if err != nil {
		return err
	}
	if *asJSON {
		if scans == nil {
			scans = []store.ScanRecord{}
		}
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scans)
	}
	if len(scans) == 0 {
		fmt.Fprintln(e.stdout, "No scans recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tROLL\tSOURCE\tRESULT")
	for _, s := range scans {
		result := "not found"
		if s.Found {
			result = "found"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", timestamp(s.ScannedAt), s.RollNumber, s.Source, result)
	}
	return tw.Flush()
}
