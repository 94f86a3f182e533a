package picker

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollscan/internal/store"
)

func TestSelectStudentEmpty(t *testing.T) {
	st, err := SelectStudent(nil)
	require.ErrorIs(t, err, ErrNoStudents)
	assert.Nil(t, st)
}

func TestFormatStudentLine(t *testing.T) {
	line := formatStudentLine(store.Student{
		RollNumber: "CS001",
		FirstName:  "John",
		LastName:   "Doe",
		Course:     "Computer Science",
	})
	assert.True(t, strings.HasPrefix(line, "CS001 "))
	assert.Contains(t, line, "John Doe")
	assert.True(t, strings.HasSuffix(line, "Computer Science"))

	line = formatStudentLine(store.Student{RollNumber: "X1", FirstName: "Ann"})
	assert.True(t, strings.HasSuffix(line, "-"))
}

func TestFormatPreview(t *testing.T) {
	preview := formatPreview(store.Student{
		RollNumber:     "EE001",
		FirstName:      "Bob",
		LastName:       "Johnson",
		Course:         "Electrical Engineering",
		Department:     "Engineering",
		Year:           2,
		Status:         store.StatusActive,
		EnrollmentDate: time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC),
	})

	assert.Contains(t, preview, "Bob Johnson")
	assert.Contains(t, preview, "(EE001)")
	assert.Contains(t, preview, "Course:      Electrical Engineering")
	assert.Contains(t, preview, "Year:        2")
	assert.Contains(t, preview, "Enrolled:    2023-09-01")
	assert.NotContains(t, preview, "Email:")
	assert.NotContains(t, preview, "Phone:")
}
