// Package api exposes the scanner state, the student roster and the scan
// history over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"rollscan/internal/health"
	"rollscan/internal/logging"
	"rollscan/internal/lookup"
	"rollscan/internal/metrics"
	"rollscan/internal/store"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Students is the part of the student store served by the API.
type Students interface {
	GetStudentByRollNumber(ctx context.Context, rollNumber string) (*store.Student, error)
	ListStudents(ctx context.Context) ([]store.Student, error)
	AddStudent(ctx context.Context, st *store.Student) error
	UpdateStudent(ctx context.Context, st *store.Student) error
	DeleteStudent(ctx context.Context, rollNumber string) error
	RecentScans(ctx context.Context, limit int) ([]store.ScanRecord, error)
}

// Scanner is the part of the lookup controller served by the API.
type Scanner interface {
	State() lookup.State
	StartScanning()
	StopScanning()
	Lookup(ctx context.Context, roll string, source store.ScanSource) lookup.Result
}

// Server routes HTTP requests to the store and the controller.
type Server struct {
	router   *mux.Router
	students Students
	scanner  Scanner
	metrics  *metrics.ScanMetrics
	audit    *logging.AuditLogger
	health   *health.Checker
	logger   *slog.Logger
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics serves the registry behind m on /metrics.
func WithMetrics(m *metrics.ScanMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithAudit records roster changes made through the API.
func WithAudit(a *logging.AuditLogger) Option {
	return func(s *Server) {
		s.audit = a
	}
}

// WithHealth serves the checker's aggregated status on /health and its
// readiness on /ready.
func WithHealth(c *health.Checker) Option {
	return func(s *Server) {
		s.health = c
	}
}

// New builds the router.
func New(students Students, scanner Scanner, opts ...Option) *Server {
	s := &Server{
		students: students,
		scanner:  scanner,
		logger:   logging.Discard(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.requestID)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ready", s.handleReady).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/scanner/start", s.handleScannerStart).Methods("POST")
	r.HandleFunc("/scanner/stop", s.handleScannerStop).Methods("POST")

	r.HandleFunc("/students", s.handleListStudents).Methods("GET")
	r.HandleFunc("/students", s.handleCreateStudent).Methods("POST")
	r.HandleFunc("/students/{roll}", s.handleGetStudent).Methods("GET")
	r.HandleFunc("/students/{roll}", s.handleUpdateStudent).Methods("PUT")
	r.HandleFunc("/students/{roll}", s.handleDeleteStudent).Methods("DELETE")

	r.HandleFunc("/lookup", s.handleLookup).Methods("POST")
	r.HandleFunc("/scans", s.handleScans).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestID tags each request with an ID, echoes it in the response and
// logs the outcome.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := logging.ContextWithRequestID(r.Context(), id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		s.logger.Debug("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return s.logger.With("request_id", logging.RequestIDFromContext(r.Context()))
}
