// Package picker offers an interactive fuzzy finder over the student roster.
package picker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/koki-develop/go-fzf"

	"rollscan/internal/store"
)

// ErrNoStudents is returned when there is nothing to pick from.
var ErrNoStudents = errors.New("no students found")

const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// SelectStudent presents an interactive fuzzy finder. It returns nil, nil
// when the user cancels.
func SelectStudent(students []store.Student) (*store.Student, error) {
	if len(students) == 0 {
		return nil, ErrNoStudents
	}

	f, err := fzf.New(
		fzf.WithPrompt("Students > "),
		fzf.WithInputPosition(fzf.InputPositionTop),
		fzf.WithLimit(1),
	)
	if err != nil {
		return nil, fmt.Errorf("create finder: %w", err)
	}

	idxs, err := f.Find(
		students,
		func(i int) string {
			return formatStudentLine(students[i])
		},
		fzf.WithPreviewWindow(func(i, w, h int) string {
			if i < 0 || i >= len(students) {
				return ""
			}
			return formatPreview(students[i])
		}),
	)
	if err != nil {
		if errors.Is(err, fzf.ErrAbort) {
			return nil, nil
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	if len(idxs) == 0 {
		return nil, nil
	}

	return &students[idxs[0]], nil
}

func formatStudentLine(s store.Student) string {
	course := s.Course
	if course == "" {
		course = "-"
	}
	return fmt.Sprintf("%-10s  %-24s  %s", s.RollNumber, s.FullName(), course)
}

func formatPreview(s store.Student) string {
	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "%s  %s\n", headerStyle.Render(s.FullName()), dimStyle.Render("("+s.RollNumber+")"))
	b.WriteString(separator + "\n")

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%-12s %s\n", label+":", value)
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

	return b.String()
}
