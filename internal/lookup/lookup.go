// Package lookup turns completed barcodes into student lookups and keeps the
// presentation state shown by every front end.
//
// A Controller subscribes to a scanbuf.Buffer. Each scan starts a lookup on
// its own goroutine; the scan buffer is never touched from there. Results
// update the shared State, which subscribers observe through Subscribe.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rollscan/internal/metrics"
	"rollscan/internal/scanbuf"
	"rollscan/internal/store"
)

// Status messages shown to the operator.
const (
	StatusReady     = "Ready to scan barcode..."
	StatusStopped   = "Barcode scanning stopped."
	StatusError     = "Error occurred while searching for student."
	StatusInitError = "Error initializing application. Please restart."
)

// StatusSearching returns the message shown while a lookup runs.
func StatusSearching(roll string) string {
	return fmt.Sprintf("Searching for student: %s...", roll)
}

// StatusFound returns the message shown for a match.
func StatusFound(fullName string) string {
	return "Student found: " + fullName
}

// StatusNotFound returns the message shown when nothing matches.
func StatusNotFound(roll string) string {
	return "No student found with roll number: " + roll
}

// Store is the subset of the student store the controller needs.
type Store interface {
	GetStudentByRollNumber(ctx context.Context, rollNumber string) (*store.Student, error)
	RecordScan(ctx context.Context, rec *store.ScanRecord) error
	SeedSampleData(ctx context.Context) (bool, error)
}

// Result describes one completed lookup.
type Result struct {
	RollNumber string
	Source     store.ScanSource
	Student    *store.Student
	Err        error
	Duration   time.Duration
}

// Found reports whether the lookup matched a student.
func (r Result) Found() bool {
	return r.Err == nil && r.Student != nil
}

// Notifier is told about every completed lookup.
type Notifier interface {
	Notify(ctx context.Context, r Result) error
}

// State is a snapshot of what the front end displays.
type State struct {
	CurrentStudent   *store.Student `json:"current_student"`
	StatusMessage    string         `json:"status_message"`
	IsScanning       bool           `json:"is_scanning"`
	ManualRollNumber string         `json:"manual_roll_number"`
	Searching        bool           `json:"searching"`
	LastRollNumber   string         `json:"last_roll_number,omitempty"`
}

// ScanningStatusText is the label for the scanner toggle.
func (s State) ScanningStatusText() string {
	if s.IsScanning {
		return "Scanner: ON"
	}
	return "Scanner: OFF"
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records lookup outcomes.
func WithMetrics(m *metrics.ScanMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithNotifier adds a notifier. It may be given more than once.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifiers = append(c.notifiers, n)
		}
	}
}

// WithSeedSampleData seeds the demo roster on Start when the store is empty.
func WithSeedSampleData(seed bool) Option {
	return func(c *Controller) {
		c.seed = seed
	}
}

// WithLookupTimeout bounds each database lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.lookupTimeout = d
		}
	}
}

type subscriber struct {
	id int
	fn func(State)
}

// Controller coordinates the scan buffer, the store and the displayed state.
type Controller struct {
	buf           *scanbuf.Buffer
	store         Store
	logger        *slog.Logger
	metrics       *metrics.ScanMetrics
	notifiers     []Notifier
	seed          bool
	lookupTimeout time.Duration

	mu    sync.Mutex
	state State
	seq   uint64
	ctx   context.Context

	subMu  sync.Mutex
	subs   []subscriber
	nextID int

	unsubscribe func()
	wg          sync.WaitGroup
}

// New creates a controller. Call Start to begin listening.
func New(buf *scanbuf.Buffer, st Store, opts ...Option) *Controller {
	c := &Controller{
		buf:           buf,
		store:         st,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		lookupTimeout: 5 * time.Second,
		ctx:           context.Background(),
		state: State{
			StatusMessage: StatusReady,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start prepares the database and begins listening for scans. On failure
// the status reports the initialization error and scanning stays off.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	if c.seed {
		seeded, err := c.store.SeedSampleData(ctx)
		if err != nil {
			c.logger.Error("error initializing application", "error", err)
			c.update(func(s *State) {
				s.StatusMessage = StatusInitError
				s.IsScanning = false
			})
			return fmt.Errorf("initialize database: %w", err)
		}
		if seeded {
			c.logger.Info("seeded sample students")
		}
	}

	if c.unsubscribe == nil {
		c.unsubscribe = c.buf.OnScan(c.onScan)
	}
	c.buf.StartListening()
	c.update(func(s *State) {
		s.IsScanning = true
		s.StatusMessage = StatusReady
	})
	return nil
}

// Close stops listening and waits for running lookups.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.buf.StopListening()
	c.wg.Wait()
}

// Wait blocks until every started lookup has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for state changes. fn is called with a copy of the
// new state, outside the controller's locks.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// ToggleScanning flips the scanner between listening and stopped.
func (c *Controller) ToggleScanning() {
	if c.State().IsScanning {
		c.StopScanning()
	} else {
		c.StartScanning()
	}
}

// StartScanning resumes listening.
func (c *Controller) StartScanning() {
	c.buf.StartListening()
	c.update(func(s *State) {
		s.IsScanning = true
		s.StatusMessage = StatusReady
	})
}

// StopScanning stops listening and drops any partial scan.
func (c *Controller) StopScanning() {
	c.buf.StopListening()
	c.update(func(s *State) {
		s.IsScanning = false
		s.StatusMessage = StatusStopped
	})
}

// SetManualRollNumber stores the text of the manual search field.
func (c *Controller) SetManualRollNumber(roll string) {
	c.update(func(s *State) {
		s.ManualRollNumber = roll
	})
}

// SearchManual looks up roll after trimming surrounding whitespace. Blank
// input is ignored. The lookup runs asynchronously.
func (c *Controller) SearchManual(roll string) {
	roll = strings.TrimSpace(roll)
	if roll == "" {
		return
	}
	c.update(func(s *State) {
		s.ManualRollNumber = roll
	})
	c.startLookup(roll, store.SourceManual)
}

// Clear resets the displayed student and the manual search field.
func (c *Controller) Clear() {
	c.update(func(s *State) {
		s.CurrentStudent = nil
		s.ManualRollNumber = ""
		if s.IsScanning {
			s.StatusMessage = StatusReady
		} else {
			s.StatusMessage = StatusStopped
		}
	})
}

// Lookup runs a lookup synchronously and applies its result to the state.
func (c *Controller) Lookup(ctx context.Context, roll string, source store.ScanSource) Result {
	seq := c.beginSearch(roll)
	return c.search(ctx, seq, roll, source)
}

func (c *Controller) onScan(code string) {
	c.startLookup(code, store.SourceScanner)
}

func (c *Controller) startLookup(roll string, source store.ScanSource) {
	seq := c.beginSearch(roll)

	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.search(ctx, seq, roll, source)
	}()
}

func (c *Controller) beginSearch(roll string) uint64 {
	var seq uint64
	c.update(func(s *State) {
		c.seq++
		seq = c.seq
		s.Searching = true
		s.LastRollNumber = roll
		s.StatusMessage = StatusSearching(roll)
	})
	return seq
}

func (c *Controller) search(ctx context.Context, seq uint64, roll string, source store.ScanSource) Result {
	lookupCtx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	start := time.Now()
	student, err := c.store.GetStudentByRollNumber(lookupCtx, roll)
	res := Result{
		RollNumber: roll,
		Source:     source,
		Student:    student,
		Err:        err,
		Duration:   time.Since(start),
	}
	c.metrics.RecordLookup(res.Found(), err, res.Duration)

	switch {
	case err != nil:
		c.logger.Error("error searching for student", "roll_number", roll, "error", err)
	case student != nil:
		c.logger.Info("student found", "roll_number", roll, "name", student.FullName())
	default:
		c.logger.Warn("no student found", "roll_number", roll)
	}

	c.apply(seq, res)

	if err == nil {
		rec := &store.ScanRecord{RollNumber: roll, Source: source, Found: student != nil}
		if rerr := c.store.RecordScan(ctx, rec); rerr != nil && !errors.Is(rerr, context.Canceled) {
			c.logger.Warn("failed to record scan", "roll_number", roll, "error", rerr)
		}
	}

	for _, n := range c.notifiers {
		if nerr := n.Notify(ctx, res); nerr != nil {
			c.logger.Warn("notification failed", "error", nerr)
		}
	}
	return res
}

// apply updates the state unless a newer lookup has started since seq.
func (c *Controller) apply(seq uint64, res Result) {
	c.update(func(s *State) {
		if seq != c.seq {
			return
		}
		s.Searching = false
		switch {
		case res.Err != nil:
			s.CurrentStudent = nil
			s.StatusMessage = StatusError
		case res.Student != nil:
			s.CurrentStudent = res.Student
			s.StatusMessage = StatusFound(res.Student.FullName())
		default:
			s.CurrentStudent = nil
			s.StatusMessage = StatusNotFound(res.RollNumber)
		}
	})
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	before := c.state
	fn(&c.state)
	after := c.state
	c.mu.Unlock()

	if before == after {
		return
	}

	c.subMu.Lock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.subMu.Unlock()

	for _, s := range subs {
		s.fn(after)
	}
}
