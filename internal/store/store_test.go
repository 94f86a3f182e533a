package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "students.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAndClose(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := OpenWithOptions(dbPath, Options{BusyTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, s.AddStudent(ctx, &Student{RollNumber: "ME010", FirstName: "Ada", LastName: "Park"}))
	require.NoError(t, s.Close())

	s, err = Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	st, err := s.GetStudentByRollNumber(ctx, "ME010")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "Ada Park", st.FullName())
}

func TestGetStudentMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)

	st, err := s.GetStudentByRollNumber(context.Background(), "ZZ999")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestAddAndGetStudent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	enrolled := time.Date(2023, 9, 1, 8, 30, 0, 0, time.Local)
	want := &Student{
		RollNumber:     "CS100",
		FirstName:      "Grace",
		LastName:       "Hopper",
		Email:          "grace@university.edu",
		Course:         "Computer Science",
		Department:     "Engineering",
		Year:           4,
		PhoneNumber:    "+1-555-0199",
		EnrollmentDate: enrolled,
		Status:         "Graduated",
		PhotoPath:      "CS100.jpg",
	}
	require.NoError(t, s.AddStudent(ctx, want))

	got, err := s.GetStudentByRollNumber(ctx, "CS100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.FirstName, got.FirstName)
	assert.Equal(t, want.LastName, got.LastName)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.Year, got.Year)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.PhotoPath, got.PhotoPath)
	assert.True(t, enrolled.Equal(got.EnrollmentDate), "enrollment date %v != %v", got.EnrollmentDate, enrolled)
}

func TestLookupIsExactAndCaseSensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddStudent(ctx, &Student{RollNumber: "CS001", FirstName: "John", LastName: "Doe"}))

	for _, roll := range []string{"cs001", "CS00", "CS0011", " CS001"} {
		st, err := s.GetStudentByRollNumber(ctx, roll)
		require.NoError(t, err)
		assert.Nil(t, st, "roll %q should not match", roll)
	}
}

func TestOptionalFieldsDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddStudent(ctx, &Student{RollNumber: "X1", FirstName: "Min", LastName: "Imal"}))

	st, err := s.GetStudentByRollNumber(ctx, "X1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, StatusActive, st.Status)
	assert.Empty(t, st.PhotoPath)
	assert.True(t, st.EnrollmentDate.IsZero())

	var photo any
	require.NoError(t, s.DB().QueryRow(`SELECT photo_path FROM students WHERE roll_number = 'X1'`).Scan(&photo))
	assert.Nil(t, photo, "blank photo path should be stored as NULL")
}

func TestUnparseableDateYieldsZeroTime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.DB().Exec(`INSERT INTO students (roll_number, first_name, last_name, enrollment_date)
		VALUES ('BAD1', 'Bad', 'Date', 'last tuesday')`)
	require.NoError(t, err)

	st, err := s.GetStudentByRollNumber(ctx, "BAD1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.EnrollmentDate.IsZero())
}

func TestAddDuplicateStudent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := &Student{RollNumber: "CS001", FirstName: "John", LastName: "Doe"}
	require.NoError(t, s.AddStudent(ctx, st))

	err := s.AddStudent(ctx, st)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestAddInvalidStudent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		st   *Student
	}{
		{"nil", nil},
		{"missing roll", &Student{FirstName: "A", LastName: "B"}},
		{"missing first", &Student{RollNumber: "R1", LastName: "B"}},
		{"missing last", &Student{RollNumber: "R1", FirstName: "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.AddStudent(ctx, tt.st)
			assert.ErrorIs(t, err, ErrInvalidStudent)
		})
	}
}

func TestUpdateStudent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := &Student{RollNumber: "EE002", FirstName: "Nikola", LastName: "Tesla", Year: 1}
	require.NoError(t, s.AddStudent(ctx, st))

	st.Year = 2
	st.Status = "Suspended"
	st.PhotoPath = "EE002.webp"
	require.NoError(t, s.UpdateStudent(ctx, st))

	got, err := s.GetStudentByRollNumber(ctx, "EE002")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Year)
	assert.Equal(t, "Suspended", got.Status)
	assert.Equal(t, "EE002.webp", got.PhotoPath)

	err = s.UpdateStudent(ctx, &Student{RollNumber: "NOPE", FirstName: "A", LastName: "B"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteStudent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddStudent(ctx, &Student{RollNumber: "D1", FirstName: "Del", LastName: "Ete"}))
	require.NoError(t, s.DeleteStudent(ctx, "D1"))

	st, err := s.GetStudentByRollNumber(ctx, "D1")
	require.NoError(t, err)
	assert.Nil(t, st)

	assert.ErrorIs(t, s.DeleteStudent(ctx, "D1"), ErrNotFound)
}

func TestListStudentsOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, roll := range []string{"EE001", "AB123", "CS002", "CS001"} {
		require.NoError(t, s.AddStudent(ctx, &Student{RollNumber: roll, FirstName: "F", LastName: "L"}))
	}

	students, err := s.ListStudents(ctx)
	require.NoError(t, err)

	var rolls []string
	for _, st := range students {
		rolls = append(rolls, st.RollNumber)
	}
	assert.Equal(t, []string{"AB123", "CS001", "CS002", "EE001"}, rolls)
}

func TestSeedSampleData(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seeded, err := s.SeedSampleData(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	st, err := s.GetStudentByRollNumber(ctx, "CS001")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "John Doe", st.FullName())
	assert.Equal(t, "Computer Science", st.Course)
	assert.Equal(t, 2, st.Year)

	// Second call is a no-op.
	seeded, err = s.SeedSampleData(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSeedSkipsNonEmptyTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddStudent(ctx, &Student{RollNumber: "ONLY", FirstName: "One", LastName: "Row"}))

	seeded, err := s.SeedSampleData(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	st, err := s.GetStudentByRollNumber(ctx, "CS001")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestImportStudentsReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AddStudent(ctx, &Student{RollNumber: "CS001", FirstName: "Old", LastName: "Name"}))

	n, err := s.ImportStudents(ctx, []Student{
		{RollNumber: "CS001", FirstName: "John", LastName: "Doe"},
		{RollNumber: "CS003", FirstName: "Ann", LastName: "Lee"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := s.GetStudentByRollNumber(ctx, "CS001")
	require.NoError(t, err)
	assert.Equal(t, "John", st.FirstName)

	_, err = s.ImportStudents(ctx, []Student{{RollNumber: "BAD"}})
	assert.ErrorIs(t, err, ErrInvalidStudent)
}

func TestRecordAndListScans(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	for i, roll := range []string{"CS001", "ZZ999", "EE001"} {
		rec := &ScanRecord{
			RollNumber: roll,
			Source:     SourceScanner,
			Found:      roll != "ZZ999",
			ScannedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.RecordScan(ctx, rec))
		assert.NotEmpty(t, rec.ID)
	}

	recs, err := s.RecentScans(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "EE001", recs[0].RollNumber)
	assert.Equal(t, "ZZ999", recs[1].RollNumber)
	assert.False(t, recs[1].Found)
	assert.Equal(t, SourceScanner, recs[0].Source)
	assert.True(t, base.Add(2*time.Second).Equal(recs[0].ScannedAt))
}

func TestRecordScanFillsTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &ScanRecord{ID: "fixed-id", RollNumber: "CS001", Source: SourceManual, Found: true}
	require.NoError(t, s.RecordScan(ctx, rec))
	assert.Equal(t, "fixed-id", rec.ID)
	assert.False(t, rec.ScannedAt.IsZero())
}

func TestMigrationStatus(t *testing.T) {
	s := openTestStore(t)

	status, err := GetMigrationStatus(s.DB())
	require.NoError(t, err)
	assert.Equal(t, status.LatestVersion, status.CurrentVersion)
	assert.Empty(t, status.Pending)
	assert.Len(t, status.Applied, len(migrations))

	require.NoError(t, ValidateSchema(s.DB()))
}

func TestRollbackMigration(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, RollbackMigration(s.DB()))
	status, err := GetMigrationStatus(s.DB())
	require.NoError(t, err)
	assert.Equal(t, 2, status.CurrentVersion)
	assert.Error(t, ValidateSchema(s.DB()))

	require.NoError(t, MigrateDB(s.DB()))
	require.NoError(t, ValidateSchema(s.DB()))
}

func TestStudentNames(t *testing.T) {
	tests := []struct {
		st       Student
		full     string
		initials string
	}{
		{Student{FirstName: "John", LastName: "Doe"}, "John Doe", "JD"},
		{Student{FirstName: "émile", LastName: "zola"}, "émile zola", "ÉZ"},
		{Student{FirstName: "Cher"}, "Cher", "C"},
		{Student{RollNumber: "cs9"}, "", "C"},
		{Student{}, "", ""},
	}
	for _, tt := range tests {
		if got := tt.st.FullName(); got != tt.full {
			t.Errorf("FullName() = %q, want %q", got, tt.full)
		}
		if got := tt.st.Initials(); got != tt.initials {
			t.Errorf("Initials() = %q, want %q", got, tt.initials)
		}
	}
}
