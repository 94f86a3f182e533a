// Package roster reads and writes student rosters for bulk import and
// export.
//
// A roster is a JSON document of the form {"version": 1, "students": [...]}.
// Documents are validated against an embedded JSON Schema before any record
// reaches the store. YAML files using the same layout are accepted too.
package roster

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"rollscan/internal/store"
)

// Version is the roster format version written by Encode.
const Version = 1

const schemaURL = "https://rollscan.local/schema/roster-v1.json"

//go:embed roster.schema.json
var schemaJSON []byte

var schema = jsonschema.MustCompileString(schemaURL, string(schemaJSON))

// ValidationError reports a roster that does not match the schema.
type ValidationError struct {
	Name string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid roster %s: %v", e.Name, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Document is the on-disk roster layout.
type Document struct {
	Version  int      `json:"version,omitempty" yaml:"version,omitempty"`
	Students []Record `json:"students" yaml:"students"`
}

// Record is a student as it appears in a roster file.
type Record struct {
	RollNumber     string `json:"roll_number" yaml:"roll_number"`
	FirstName      string `json:"first_name" yaml:"first_name"`
	LastName       string `json:"last_name" yaml:"last_name"`
	Email          string `json:"email,omitempty" yaml:"email,omitempty"`
	Course         string `json:"course,omitempty" yaml:"course,omitempty"`
	Department     string `json:"department,omitempty" yaml:"department,omitempty"`
	Year           int    `json:"year,omitempty" yaml:"year,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty" yaml:"phone_number,omitempty"`
	EnrollmentDate string `json:"enrollment_date,omitempty" yaml:"enrollment_date,omitempty"`
	Status         string `json:"status,omitempty" yaml:"status,omitempty"`
	PhotoPath      string `json:"photo_path,omitempty" yaml:"photo_path,omitempty"`
}

// Student converts the record to a store row.
func (r Record) Student() (store.Student, error) {
	enrolled, err := parseDate(r.EnrollmentDate)
	if err != nil {
		return store.Student{}, fmt.Errorf("student %s: %w", r.RollNumber, err)
	}
	return store.Student{
		RollNumber:     r.RollNumber,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		Course:         r.Course,
		Department:     r.Department,
		Year:           r.Year,
		PhoneNumber:    r.PhoneNumber,
		EnrollmentDate: enrolled,
		Status:         r.Status,
		PhotoPath:      r.PhotoPath,
	}, nil
}

// FromStudent converts a store row to a roster record.
func FromStudent(s store.Student) Record {
	r := Record{
		RollNumber:  s.RollNumber,
		FirstName:   s.FirstName,
		LastName:    s.LastName,
		Email:       s.Email,
		Course:      s.Course,
		Department:  s.Department,
		Year:        s.Year,
		PhoneNumber: s.PhoneNumber,
		Status:      s.Status,
		PhotoPath:   s.PhotoPath,
	}
	if !s.EnrollmentDate.IsZero() {
		r.EnrollmentDate = s.EnrollmentDate.Format(store.DateLayout)
	}
	return r
}

// Decode reads and validates a JSON roster. name labels errors.
func Decode(r io.Reader, name string) ([]store.Student, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return decodeJSON(data, name)
}

// DecodeFile reads a roster from disk. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func DecodeFile(path string) ([]store.Student, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, &ValidationError{Name: name, Err: err}
		}
	}
	return decodeJSON(data, name)
}

func decodeJSON(data []byte, name string) ([]store.Student, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, &ValidationError{Name: name, Err: err}
	}
	if err := schema.Validate(instance); err != nil {
		return nil, &ValidationError{Name: name, Err: err}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	students := make([]store.Student, 0, len(doc.Students))
	seen := make(map[string]bool, len(doc.Students))
	for _, rec := range doc.Students {
		if seen[rec.RollNumber] {
			return nil, &ValidationError{Name: name, Err: fmt.Errorf("duplicate roll number %q", rec.RollNumber)}
		}
		seen[rec.RollNumber] = true

		st, err := rec.Student()
		if err != nil {
			return nil, &ValidationError{Name: name, Err: err}
		}
		students = append(students, st)
	}
	return students, nil
}

// yamlToJSON re-encodes a YAML document so it can be checked with the JSON
// schema. Unquoted YAML timestamps become RFC 3339 strings.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}

// Encode writes students as an indented JSON roster.
func Encode(w io.Writer, students []store.Student) error {
	doc := Document{Version: Version, Students: make([]Record, 0, len(students))}
	for _, s := range students {
		doc.Students = append(doc.Students, FromStudent(s))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeFile writes the roster to path, choosing YAML for .yaml and .yml.
func EncodeFile(path string, students []store.Student) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc := Document{Version: Version}
		for _, s := range students {
			doc.Students = append(doc.Students, FromStudent(s))
		}
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode roster: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode roster: %w", err)
		}
	default:
		if err := Encode(&buf, students); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return nil
}

var dateLayouts = []string{store.DateLayout, time.RFC3339, "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized enrollment date %q", s)
}
