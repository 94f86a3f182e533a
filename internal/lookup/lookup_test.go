package lookup

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollscan/internal/metrics"
	"rollscan/internal/scanbuf"
	"rollscan/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	students map[string]*store.Student
	err      error
	seedErr  error
	scans    []store.ScanRecord
	gate     chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{students: map[string]*store.Student{
		"CS001": {RollNumber: "CS001", FirstName: "John", LastName: "Doe"},
	}}
}

func (f *fakeStore) GetStudentByRollNumber(ctx context.Context, roll string) (*store.Student, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.students[roll], nil
}

func (f *fakeStore) RecordScan(ctx context.Context, rec *store.ScanRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans = append(f.scans, *rec)
	return nil
}

func (f *fakeStore) SeedSampleData(ctx context.Context) (bool, error) {
	return false, f.seedErr
}

func (f *fakeStore) recorded() []store.ScanRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.ScanRecord(nil), f.scans...)
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []Result
}

func (n *recordingNotifier) Notify(ctx context.Context, r Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, r)
	return nil
}

func startController(t *testing.T, st Store, opts ...Option) (*Controller, *scanbuf.Buffer) {
	t.Helper()
	buf := scanbuf.New()
	c := New(buf, st, opts...)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c, buf
}

var cs001 = []scanbuf.Key{scanbuf.KeyC, scanbuf.KeyS, scanbuf.KeyD0, scanbuf.KeyD0, scanbuf.KeyD1, scanbuf.KeyReturn}

func TestInitialState(t *testing.T) {
	c := New(scanbuf.New(), newFakeStore())

	s := c.State()
	assert.Equal(t, StatusReady, s.StatusMessage)
	assert.False(t, s.IsScanning)
	assert.Nil(t, s.CurrentStudent)
}

func TestStartBeginsListening(t *testing.T) {
	c, buf := startController(t, newFakeStore())

	assert.True(t, buf.IsListening())
	assert.True(t, c.State().IsScanning)
	assert.Equal(t, "Scanner: ON", c.State().ScanningStatusText())
}

func TestStartFailure(t *testing.T) {
	fs := newFakeStore()
	fs.seedErr = errors.New("disk full")
	buf := scanbuf.New()
	c := New(buf, fs, WithSeedSampleData(true))

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusInitError, c.State().StatusMessage)
	assert.False(t, buf.IsListening())
}

func TestScanFindsStudent(t *testing.T) {
	fs := newFakeStore()
	m := metrics.NewScanMetrics(metrics.NewRegistry("test", ""))
	n := &recordingNotifier{}
	c, buf := startController(t, fs, WithMetrics(m), WithNotifier(n))

	buf.ProcessKeys(cs001...)
	c.Wait()

	s := c.State()
	require.NotNil(t, s.CurrentStudent)
	assert.Equal(t, "CS001", s.CurrentStudent.RollNumber)
	assert.Equal(t, "Student found: John Doe", s.StatusMessage)
	assert.False(t, s.Searching)
	assert.Equal(t, uint64(1), m.LookupsFoundTotal.Value())

	scans := fs.recorded()
	require.Len(t, scans, 1)
	assert.Equal(t, store.SourceScanner, scans[0].Source)
	assert.True(t, scans[0].Found)

	require.Len(t, n.results, 1)
	assert.True(t, n.results[0].Found())
}

func TestScanNotFound(t *testing.T) {
	c, buf := startController(t, newFakeStore())

	buf.ProcessKeys(scanbuf.KeyZ, scanbuf.KeyD9, scanbuf.KeyReturn)
	c.Wait()

	s := c.State()
	assert.Nil(t, s.CurrentStudent)
	assert.Equal(t, "No student found with roll number: Z9", s.StatusMessage)
}

func TestLookupErrorClearsStudent(t *testing.T) {
	fs := newFakeStore()
	c, _ := startController(t, fs)

	c.SearchManual("CS001")
	c.Wait()
	require.NotNil(t, c.State().CurrentStudent)

	fs.mu.Lock()
	fs.err = errors.New("database is locked")
	fs.mu.Unlock()

	c.SearchManual("CS001")
	c.Wait()

	s := c.State()
	assert.Nil(t, s.CurrentStudent)
	assert.Equal(t, StatusError, s.StatusMessage)
	assert.Len(t, fs.recorded(), 1, "failed lookups are not recorded")
}

func TestSearchingStatusShownWhileLookupRuns(t *testing.T) {
	fs := newFakeStore()
	fs.gate = make(chan struct{})
	c, buf := startController(t, fs)

	buf.ProcessKeys(cs001...)
	assert.Equal(t, "Searching for student: CS001...", c.State().StatusMessage)
	assert.True(t, c.State().Searching)

	close(fs.gate)
	c.Wait()
	assert.Equal(t, "Student found: John Doe", c.State().StatusMessage)
}

func TestSearchManualTrimsAndIgnoresBlank(t *testing.T) {
	fs := newFakeStore()
	c, _ := startController(t, fs)

	c.SearchManual("   ")
	c.SearchManual("")
	c.Wait()
	assert.Empty(t, fs.recorded())
	assert.Equal(t, StatusReady, c.State().StatusMessage)

	c.SearchManual("  CS001\t")
	c.Wait()
	s := c.State()
	require.NotNil(t, s.CurrentStudent)
	assert.Equal(t, "CS001", s.ManualRollNumber)
	assert.Equal(t, store.SourceManual, fs.recorded()[0].Source)
}

func TestToggleScanning(t *testing.T) {
	c, buf := startController(t, newFakeStore())

	c.ToggleScanning()
	assert.False(t, buf.IsListening())
	assert.Equal(t, StatusStopped, c.State().StatusMessage)
	assert.Equal(t, "Scanner: OFF", c.State().ScanningStatusText())

	buf.ProcessKeys(cs001...)
	c.Wait()
	assert.Nil(t, c.State().CurrentStudent)

	c.ToggleScanning()
	assert.True(t, buf.IsListening())
	assert.Equal(t, StatusReady, c.State().StatusMessage)
}

func TestManualSearchWorksWhileStopped(t *testing.T) {
	c, _ := startController(t, newFakeStore())
	c.StopScanning()

	c.SearchManual("CS001")
	c.Wait()
	assert.NotNil(t, c.State().CurrentStudent)
	assert.False(t, c.State().IsScanning)
}

func TestClear(t *testing.T) {
	c, _ := startController(t, newFakeStore())

	c.SearchManual("CS001")
	c.Wait()
	c.Clear()

	s := c.State()
	assert.Nil(t, s.CurrentStudent)
	assert.Empty(t, s.ManualRollNumber)
	assert.Equal(t, StatusReady, s.StatusMessage)

	c.StopScanning()
	c.Clear()
	assert.Equal(t, StatusStopped, c.State().StatusMessage)
}

func TestSynchronousLookup(t *testing.T) {
	fs := newFakeStore()
	c, _ := startController(t, fs)

	res := c.Lookup(context.Background(), "CS001", store.SourceAPI)
	require.True(t, res.Found())
	assert.Equal(t, "John Doe", res.Student.FullName())
	assert.Equal(t, store.SourceAPI, fs.recorded()[0].Source)
	assert.Equal(t, "Student found: John Doe", c.State().StatusMessage)
}

func TestStaleResultIgnored(t *testing.T) {
	fs := newFakeStore()
	c, _ := startController(t, fs)

	seqOld := c.beginSearch("CS001")
	c.Lookup(context.Background(), "NOPE", store.SourceAPI)
	c.apply(seqOld, Result{RollNumber: "CS001", Student: fs.students["CS001"]})

	assert.Equal(t, "No student found with roll number: NOPE", c.State().StatusMessage)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	c, _ := startController(t, newFakeStore())

	var mu sync.Mutex
	var got []string
	cancel := c.Subscribe(func(s State) {
		mu.Lock()
		got = append(got, s.StatusMessage)
		mu.Unlock()
	})

	c.SearchManual("CS001")
	c.Wait()
	cancel()
	c.Clear()

	mu.Lock()
	defer mu.Unlock()
	// The first change only fills the manual field.
	assert.Equal(t, []string{StatusReady, "Searching for student: CS001...", "Student found: John Doe"}, got)
}

func TestControllerWithSQLiteStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	defer st.Close()

	c, buf := startController(t, st, WithSeedSampleData(true))
	buf.ProcessKeys(scanbuf.KeyE, scanbuf.KeyE, scanbuf.KeyD0, scanbuf.KeyD0, scanbuf.KeyD1, scanbuf.KeyEnter)
	c.Wait()

	assert.Equal(t, "Student found: Bob Johnson", c.State().StatusMessage)

	scans, err := st.RecentScans(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "EE001", scans[0].RollNumber)
}
