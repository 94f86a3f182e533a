package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollscan/internal/health"
	"rollscan/internal/logging"
	"rollscan/internal/lookup"
	"rollscan/internal/metrics"
	"rollscan/internal/roster"
	"rollscan/internal/scanbuf"
	"rollscan/internal/store"
)

type testEnv struct {
	server *Server
	ctrl   *lookup.Controller
	store  *store.Store
	dir    string
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.NewScanMetrics(metrics.NewRegistry("rollscan", ""))
	ctrl := lookup.New(scanbuf.New(), st, lookup.WithSeedSampleData(true), lookup.WithMetrics(m))
	require.NoError(t, ctrl.Start(context.Background()))
	t.Cleanup(ctrl.Close)

	opts = append([]Option{WithMetrics(m)}, opts...)
	return &testEnv{
		server: New(st, ctrl, opts...),
		ctrl:   ctrl,
		store:  st,
		dir:    dir,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err, "response should carry a generated request ID")

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a uuid", rec.Header().Get(RequestIDHeader))
}

func TestHealthChecker(t *testing.T) {
	checker := health.NewChecker()
	env := newTestEnv(t, WithHealth(checker))
	checker.RegisterFunc("database", true, health.DatabaseCheck(env.store.Ping))
	checker.RegisterFunc("scanner", false, health.ScannerCheck(func() bool {
		return env.ctrl.State().IsScanning
	}))

	rec := env.do(t, "GET", "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checker.SetReady(true)

	rec = env.do(t, "GET", "/health?full=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp health.Response
	decode(t, rec, &resp)
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Equal(t, health.StatusHealthy, resp.Components["database"].Status)

	env.do(t, "POST", "/scanner/stop", "")
	rec = env.do(t, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, health.StatusDegraded, resp.Status)

	rec = env.do(t, "GET", "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.store.Close())
	rec = env.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusAndScannerToggle(t *testing.T) {
	env := newTestEnv(t)

	var status StatusResponse
	rec := env.do(t, "GET", "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.True(t, status.Listening)
	assert.Equal(t, "Scanner: ON", status.Scanner)
	assert.Equal(t, lookup.StatusReady, status.StatusMessage)
	assert.Nil(t, status.CurrentStudent)

	rec = env.do(t, "POST", "/scanner/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.False(t, status.Listening)
	assert.Equal(t, "Scanner: OFF", status.Scanner)
	assert.Equal(t, lookup.StatusStopped, status.StatusMessage)

	rec = env.do(t, "POST", "/scanner/start", "")
	decode(t, rec, &status)
	assert.True(t, status.Listening)
	assert.Equal(t, lookup.StatusReady, status.StatusMessage)
}

func TestListAndGetStudents(t *testing.T) {
	env := newTestEnv(t)

	var list []roster.Record
	rec := env.do(t, "GET", "/students", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"CS001", "CS002", "EE001"},
		[]string{list[0].RollNumber, list[1].RollNumber, list[2].RollNumber})

	var student roster.Record
	rec = env.do(t, "GET", "/students/CS002", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &student)
	assert.Equal(t, "Jane", student.FirstName)
	assert.NotEmpty(t, student.EnrollmentDate)

	var errResp errorResponse
	rec = env.do(t, "GET", "/students/ZZ9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	decode(t, rec, &errResp)
	assert.Equal(t, "No student found with roll number: ZZ9", errResp.Error)
}

func TestCreateStudent(t *testing.T) {
	auditPath := filepath.Join(t.TempDir(), "audit.log")
	audit, err := logging.NewAuditLogger(&logging.AuditLoggerConfig{FilePath: auditPath, MaxSize: 1, Component: "rollscan"})
	require.NoError(t, err)
	env := newTestEnv(t, WithAudit(audit))

	body := `{"roll_number":"ME004","first_name":"Ada","last_name":"Lovelace","course":"Mechanical","year":1,"enrollment_date":"2025-09-01 09:00:00"}`
	rec := env.do(t, "POST", "/students", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/students/ME004", rec.Header().Get("Location"))

	got, err := env.store.GetStudentByRollNumber(context.Background(), "ME004")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada Lovelace", got.FullName())
	assert.Equal(t, store.StatusActive, got.Status)

	rec = env.do(t, "POST", "/students", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, "POST", "/students", `{"roll_number":"ME005","last_name":"Nofirst"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/students", `{"roll_number":"ME006","first_name":"A","last_name":"B","shoe_size":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/students", `{"roll_number":"ME007","first_name":"A","last_name":"B","enrollment_date":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, audit.Close())
	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"event_type":"student_added"`)
	assert.Contains(t, lines[0], `"resource":"ME004"`)
	assert.Contains(t, lines[1], `"result":"failure"`)
}

func TestUpdateStudent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "PUT", "/students/CS001", `{"first_name":"Johnny","last_name":"Doe","status":"Graduated"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := env.store.GetStudentByRollNumber(context.Background(), "CS001")
	require.NoError(t, err)
	assert.Equal(t, "Johnny", got.FirstName)
	assert.Equal(t, "Graduated", got.Status)

	rec = env.do(t, "PUT", "/students/CS001", `{"roll_number":"CS002","first_name":"X","last_name":"Y"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "PUT", "/students/NOPE1", `{"first_name":"X","last_name":"Y"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteStudent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "DELETE", "/students/EE001", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = env.do(t, "DELETE", "/students/EE001", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLookup(t *testing.T) {
	env := newTestEnv(t)

	var resp LookupResponse
	rec := env.do(t, "POST", "/lookup", `{"roll_number":"  EE001 "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.True(t, resp.Found)
	assert.Equal(t, "EE001", resp.RollNumber)
	assert.Equal(t, "Student found: Bob Johnson", resp.StatusMessage)
	require.NotNil(t, resp.Student)
	assert.Equal(t, "Electrical Engineering", resp.Student.Course)

	state := env.ctrl.State()
	require.NotNil(t, state.CurrentStudent)
	assert.Equal(t, "EE001", state.CurrentStudent.RollNumber)

	rec = env.do(t, "POST", "/lookup", `{"roll_number":"XX404"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	decode(t, rec, &resp)
	assert.False(t, resp.Found)
	assert.Equal(t, lookup.StatusNotFound("XX404"), resp.StatusMessage)
	assert.Nil(t, env.ctrl.State().CurrentStudent)

	rec = env.do(t, "POST", "/lookup", `{"roll_number":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/lookup", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScans(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, "POST", "/lookup", `{"roll_number":"CS001"}`)
	env.do(t, "POST", "/lookup", `{"roll_number":"XX404"}`)

	var scans []store.ScanRecord
	rec := env.do(t, "GET", "/scans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &scans)
	require.Len(t, scans, 2)
	assert.Equal(t, "XX404", scans[0].RollNumber)
	assert.False(t, scans[0].Found)
	assert.Equal(t, store.SourceAPI, scans[0].Source)
	assert.True(t, scans[1].Found)

	rec = env.do(t, "GET", "/scans?limit=1", "")
	decode(t, rec, &scans)
	assert.Len(t, scans, 1)

	for _, bad := range []string{"0", "-3", "abc", "5000"} {
		rec = env.do(t, "GET", "/scans?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestEmptyScansIsArray(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/scans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/lookup", `{"roll_number":"CS001"}`)

	rec := env.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "rollscan_lookups_found_total 1")

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Accept", "application/json")
	jrec := httptest.NewRecorder()
	env.server.ServeHTTP(jrec, req)
	assert.Equal(t, "application/json", jrec.Header().Get("Content-Type"))
	assert.True(t, json.Valid(jrec.Body.Bytes()))
}

func TestMetricsDisabled(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	defer st.Close()

	srv := New(st, lookup.New(scanbuf.New(), st))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no such endpoint")

	rec = env.do(t, "PATCH", "/students/CS001", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}

func TestRequestLoggingCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&logging.Config{
		Level:  logging.LevelDebug,
		Format: logging.FormatJSON,
		Output: "stderr",
		Writer: &buf,
	})
	require.NoError(t, err)
	env := newTestEnv(t, WithLogger(logger.Slog()))

	id := uuid.NewString()
	req := httptest.NewRequest("DELETE", "/students/CS002", nil)
	req.Header.Set(RequestIDHeader, id)
	env.server.ServeHTTP(httptest.NewRecorder(), req)

	var found int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["request_id"] == id {
			found++
		}
	}
	assert.Equal(t, 2, found, "handler log and access log should both carry the request ID: %s", buf.String())
}
