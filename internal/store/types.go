// Package store provides SQLite-based student storage for rollscan.
package store

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DateLayout is the TEXT format used for enrollment dates. It sorts
// lexicographically.
const DateLayout = "2006-01-02 15:04:05"

// Default status for new records.
const StatusActive = "Active"

// Student is one row of the students table. RollNumber is the natural key
// printed on the barcode.
type Student struct {
	RollNumber     string    `json:"roll_number"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email,omitempty"`
	Course         string    `json:"course,omitempty"`
	Department     string    `json:"department,omitempty"`
	Year           int       `json:"year,omitempty"`
	PhoneNumber    string    `json:"phone_number,omitempty"`
	EnrollmentDate time.Time `json:"enrollment_date"`
	Status         string    `json:"status"`
	PhotoPath      string    `json:"photo_path,omitempty"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Initials returns the uppercase first letters of the first and last
// names, falling back to the first letter of the roll number.
func (s Student) Initials() string {
	var b strings.Builder
	for _, name := range []string{s.FirstName, s.LastName} {
		if r, ok := firstRune(name); ok {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		if r, ok := firstRune(s.RollNumber); ok {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func firstRune(s string) (rune, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, true
}

// ScanSource says how a roll number reached the lookup.
type ScanSource string

const (
	// SourceScanner marks roll numbers assembled from scanner keystrokes.
	SourceScanner ScanSource = "scanner"
	// SourceManual marks roll numbers typed into the search field.
	SourceManual ScanSource = "manual"
	// SourceAPI marks lookups requested over HTTP.
	SourceAPI ScanSource = "api"
)

// ScanRecord is one entry of the scan history.
type ScanRecord struct {
	ID         string     `json:"id"`
	RollNumber string     `json:"roll_number"`
	Source     ScanSource `json:"source"`
	Found      bool       `json:"found"`
	ScannedAt  time.Time  `json:"scanned_at"`
}
