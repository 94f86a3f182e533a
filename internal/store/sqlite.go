package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when an update or delete targets a missing roll number.
	ErrNotFound = errors.New("student not found")
	// ErrDuplicate is returned when adding a roll number that already exists.
	ErrDuplicate = errors.New("student already exists")
	// ErrInvalidStudent is returned for records missing required fields.
	ErrInvalidStudent = errors.New("invalid student")
)

// DefaultBusyTimeout is how long SQLite waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

const studentColumns = `roll_number, first_name, last_name, email, course, department, year, phone_number, enrollment_date, status, photo_path`

// Store represents the SQLite student store.
type Store struct {
	db   *sql.DB
	path string
}

// Options tune how the database is opened.
type Options struct {
	// BusyTimeout is the SQLite busy timeout. Zero means DefaultBusyTimeout.
	BusyTimeout time.Duration
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions is Open with explicit options.
func OpenWithOptions(path string, opts Options) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the underlying handle for migration tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// GetStudentByRollNumber returns the student with an exactly matching roll
// number, or nil when there is none.
func (s *Store) GetStudentByRollNumber(ctx context.Context, rollNumber string) (*Student, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE roll_number = ?`, rollNumber)

	st, err := scanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

// ListStudents returns every student ordered by roll number.
func (s *Store) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students ORDER BY roll_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}

	return students, nil
}

// Count returns the number of students.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// AddStudent inserts a new student.
func (s *Store) AddStudent(ctx context.Context, st *Student) error {
	return addStudent(ctx, s.db, st)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addStudent(ctx context.Context, db execer, st *Student) error {
	if err := validateStudent(st); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		studentArgs(st)...,
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("add student %s: %w", st.RollNumber, ErrDuplicate)
		}
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// UpdateStudent rewrites every editable field of the student identified by
// RollNumber.
func (s *Store) UpdateStudent(ctx context.Context, st *Student) error {
	if err := validateStudent(st); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE students
		SET first_name = ?, last_name = ?, email = ?, course = ?, department = ?, year = ?,
		    phone_number = ?, enrollment_date = ?, status = ?, photo_path = ?
		WHERE roll_number = ?`,
		st.FirstName, st.LastName, st.Email, st.Course, st.Department, st.Year,
		st.PhoneNumber, formatDate(st.EnrollmentDate), statusOrDefault(st.Status), nullIfBlank(st.PhotoPath),
		st.RollNumber,
	)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}

	return requireAffected(result, st.RollNumber)
}

// DeleteStudent removes a student by roll number.
func (s *Store) DeleteStudent(ctx context.Context, rollNumber string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE roll_number = ?`, rollNumber)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}

	return requireAffected(result, rollNumber)
}

// ImportStudents inserts or replaces the given students in one transaction.
func (s *Store) ImportStudents(ctx context.Context, students []Student) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO students (`+studentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range students {
		if err := validateStudent(&students[i]); err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, studentArgs(&students[i])...); err != nil {
			return 0, fmt.Errorf("import student %s: %w", students[i].RollNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return len(students), nil
}

// SampleStudents returns the demo roster, with enrollment dates relative to now.
func SampleStudents(now time.Time) []Student {
	now = now.Truncate(time.Second)
	return []Student{
		{
			RollNumber:     "CS001",
			FirstName:      "John",
			LastName:       "Doe",
			Email:          "john.doe@university.edu",
			Course:         "Computer Science",
			Department:     "Engineering",
			Year:           2,
			PhoneNumber:    "+1-555-0123",
			EnrollmentDate: now.AddDate(-2, 0, 0),
			Status:         StatusActive,
			PhotoPath:      "CS001.png",
		},
		{
			RollNumber:     "CS002",
			FirstName:      "Jane",
			LastName:       "Smith",
			Email:          "jane.smith@university.edu",
			Course:         "Computer Science",
			Department:     "Engineering",
			Year:           3,
			PhoneNumber:    "+1-555-0124",
			EnrollmentDate: now.AddDate(-3, 0, 0),
			Status:         StatusActive,
			PhotoPath:      "CS002.png",
		},
		{
			RollNumber:     "EE001",
			FirstName:      "Bob",
			LastName:       "Johnson",
			Email:          "bob.johnson@university.edu",
			Course:         "Electrical Engineering",
			Department:     "Engineering",
			Year:           1,
			PhoneNumber:    "+1-555-0125",
			EnrollmentDate: now.AddDate(0, -6, 0),
			Status:         StatusActive,
			PhotoPath:      "EE001.png",
		},
	}
}

// SeedSampleData inserts the demo roster when the table is empty. It
// reports whether rows were inserted.
func (s *Store) SeedSampleData(ctx context.Context) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&count); err != nil {
		return false, fmt.Errorf("count students: %w", err)
	}
	if count != 0 {
		return false, nil
	}

	for _, st := range SampleStudents(time.Now()) {
		if err := addStudent(ctx, tx, &st); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

// RecordScan appends a lookup to the scan history. A missing ID or
// timestamp is filled in.
func (s *Store) RecordScan(ctx context.Context, rec *ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (id, roll_number, source, found, scanned_at_ns)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.RollNumber, string(rec.Source), rec.Found, rec.ScannedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// RecentScans returns up to limit scan records, newest first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, roll_number, source, found, scanned_at_ns
		FROM scans
		ORDER BY scanned_at_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		var source string
		var ts int64
		if err := rows.Scan(&rec.ID, &rec.RollNumber, &source, &rec.Found, &ts); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Source = ScanSource(source)
		rec.ScannedAt = time.Unix(0, ts)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (*Student, error) {
	var (
		st                                                 Student
		email, course, dept, phone, enrolled, status, photo sql.NullString
		year                                               sql.NullInt64
	)

	err := row.Scan(&st.RollNumber, &st.FirstName, &st.LastName, &email, &course, &dept,
		&year, &phone, &enrolled, &status, &photo)
	if err != nil {
		return nil, err
	}

	st.Email = email.String
	st.Course = course.String
	st.Department = dept.String
	st.Year = int(year.Int64)
	st.PhoneNumber = phone.String
	st.EnrollmentDate = parseDate(enrolled.String)
	st.Status = statusOrDefault(status.String)
	st.PhotoPath = photo.String

	return &st, nil
}

func studentArgs(st *Student) []any {
	return []any{
		st.RollNumber, st.FirstName, st.LastName, st.Email, st.Course, st.Department,
		st.Year, st.PhoneNumber, formatDate(st.EnrollmentDate), statusOrDefault(st.Status),
		nullIfBlank(st.PhotoPath),
	}
}

func validateStudent(st *Student) error {
	switch {
	case st == nil:
		return fmt.Errorf("%w: nil record", ErrInvalidStudent)
	case strings.TrimSpace(st.RollNumber) == "":
		return fmt.Errorf("%w: roll number is required", ErrInvalidStudent)
	case strings.TrimSpace(st.FirstName) == "":
		return fmt.Errorf("%w: %s: first name is required", ErrInvalidStudent, st.RollNumber)
	case strings.TrimSpace(st.LastName) == "":
		return fmt.Errorf("%w: %s: last name is required", ErrInvalidStudent, st.RollNumber)
	}
	return nil
}

func requireAffected(result sql.Result, rollNumber string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", rollNumber, ErrNotFound)
	}
	return nil
}

func isConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(DateLayout)
}

// parseDate accepts the storage layout and RFC 3339. Unparseable values
// yield the zero time.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(DateLayout, s, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func statusOrDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return StatusActive
	}
	return s
}

func nullIfBlank(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
