package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"rollscan/internal/logging"
	"rollscan/internal/lookup"
	"rollscan/internal/roster"
	"rollscan/internal/store"
)

const (
	defaultScanLimit = 50
	maxScanLimit     = 1000
	maxBodyBytes     = 1 << 20
)

type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the body of GET /status and the scanner endpoints.
type StatusResponse struct {
	Listening      bool           `json:"listening"`
	Scanner        string         `json:"scanner"`
	StatusMessage  string         `json:"status_message"`
	Searching      bool           `json:"searching"`
	LastRollNumber string         `json:"last_roll_number,omitempty"`
	CurrentStudent *roster.Record `json:"current_student"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
}

// LookupRequest is the body of POST /lookup.
type LookupRequest struct {
	RollNumber string `json:"roll_number"`
}

// LookupResponse is the body returned by POST /lookup.
type LookupResponse struct {
	RollNumber    string         `json:"roll_number"`
	Found         bool           `json:"found"`
	StatusMessage string         `json:"status_message"`
	Student       *roster.Record `json:"student,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func recordPtr(st *store.Student) *roster.Record {
	if st == nil {
		return nil
	}
	rec := roster.FromStudent(*st)
	return &rec
}

func (s *Server) status() StatusResponse {
	state := s.scanner.State()
	return StatusResponse{
		Listening:      state.IsScanning,
		Scanner:        state.ScanningStatusText(),
		StatusMessage:  state.StatusMessage,
		Searching:      state.Searching,
		LastRollNumber: state.LastRollNumber,
		CurrentStudent: recordPtr(state.CurrentStudent),
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	s.health.Handler().ServeHTTP(w, r)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	s.health.ReadinessHandler().ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleScannerStart(w http.ResponseWriter, r *http.Request) {
	s.scanner.StartScanning()
	s.requestLogger(r).Info("scanner started over http")
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleScannerStop(w http.ResponseWriter, r *http.Request) {
	s.scanner.StopScanning()
	s.requestLogger(r).Info("scanner stopped over http")
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.students.ListStudents(r.Context())
	if err != nil {
		s.requestLogger(r).Error("list students", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	records := make([]roster.Record, 0, len(students))
	for _, st := range students {
		records = append(records, roster.FromStudent(st))
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	roll := mux.Vars(r)["roll"]
	st, err := s.students.GetStudentByRollNumber(r.Context(), roll)
	if err != nil {
		s.requestLogger(r).Error("get student", "roll_number", roll, "error", err)
		writeError(w, http.StatusInternalServerError, lookup.StatusError)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, lookup.StatusNotFound(roll))
		return
	}
	writeJSON(w, http.StatusOK, roster.FromStudent(*st))
}

// decodeStudent reads one roster record from the request body.
func decodeStudent(w http.ResponseWriter, r *http.Request) (store.Student, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var rec roster.Record
	if err := dec.Decode(&rec); err != nil {
		return store.Student{}, err
	}
	rec.RollNumber = strings.TrimSpace(rec.RollNumber)
	return rec.Student()
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	st, err := decodeStudent(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid student: "+err.Error())
		return
	}

	err = s.students.AddStudent(r.Context(), &st)
	s.audit.LogStudentChange(r.Context(), logging.AuditEventStudentAdded, "api", st.RollNumber, err)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.requestLogger(r).Info("student added", "roll_number", st.RollNumber)
	w.Header().Set("Location", "/students/"+st.RollNumber)
	writeJSON(w, http.StatusCreated, roster.FromStudent(st))
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	roll := mux.Vars(r)["roll"]
	st, err := decodeStudent(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid student: "+err.Error())
		return
	}
	if st.RollNumber != "" && st.RollNumber != roll {
		writeError(w, http.StatusBadRequest, "roll number in body does not match the path")
		return
	}
	st.RollNumber = roll

	err = s.students.UpdateStudent(r.Context(), &st)
	s.audit.LogStudentChange(r.Context(), logging.AuditEventStudentUpdated, "api", roll, err)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.requestLogger(r).Info("student updated", "roll_number", roll)
	writeJSON(w, http.StatusOK, roster.FromStudent(st))
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	roll := mux.Vars(r)["roll"]

	err := s.students.DeleteStudent(r.Context(), roll)
	s.audit.LogStudentChange(r.Context(), logging.AuditEventStudentDeleted, "api", roll, err)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.requestLogger(r).Info("student deleted", "roll_number", roll)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidStudent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.requestLogger(r).Error("store operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	roll := strings.TrimSpace(req.RollNumber)
	if roll == "" {
		writeError(w, http.StatusBadRequest, "roll_number is required")
		return
	}

	res := s.scanner.Lookup(r.Context(), roll, store.SourceAPI)
	resp := LookupResponse{
		RollNumber: roll,
		Found:      res.Found(),
		Student:    recordPtr(res.Student),
	}

	switch {
	case res.Err != nil:
		resp.StatusMessage = lookup.StatusError
		writeJSON(w, http.StatusInternalServerError, resp)
	case res.Student == nil:
		resp.StatusMessage = lookup.StatusNotFound(roll)
		writeJSON(w, http.StatusNotFound, resp)
	default:
		resp.StatusMessage = lookup.StatusFound(res.Student.FullName())
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	limit := defaultScanLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxScanLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	scans, err := s.students.RecentScans(r.Context(), limit)
	if err != nil {
		s.requestLogger(r).Error("recent scans", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read scan history")
		return
	}
	if scans == nil {
		scans = []store.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	s.metrics.UpdateUptime()
	s.metrics.Registry().HTTPHandler().ServeHTTP(w, r)
}
