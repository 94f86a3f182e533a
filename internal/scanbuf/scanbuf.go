// Package scanbuf reconstructs barcodes from the keystroke bursts produced
// by keyboard-emulating USB scanners.
//
// Scanners inject characters in a tight burst (typically a few milliseconds
// apart) and finish with Enter. A Buffer accumulates mapped characters and
// emits them when the terminator arrives. Whenever the gap since the previous
// keystroke exceeds the timeout, whatever was buffered is treated as stale
// and discarded, so slow human typing never assembles into a scan.
//
// A Buffer never returns errors: unexpected keys are dropped and stale
// partial scans are discarded.
package scanbuf

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout is the maximum gap between keystrokes of a single scan.
const DefaultTimeout = 100 * time.Millisecond

// Clock supplies the current time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Observer receives notifications about buffer activity. Callbacks run
// synchronously on the goroutine calling ProcessKeyInput.
type Observer interface {
	// ScanEmitted is called once per completed scan.
	ScanEmitted(code string)
	// KeyDropped is called for keys that map to no character.
	KeyDropped(k Key)
	// BufferReset is called when a timing gap discards buffered characters.
	BufferReset(discarded int)
	// ListeningChanged is called on every Idle/Listening transition.
	ListeningChanged(listening bool)
}

// Stats counts buffer activity since creation.
type Stats struct {
	Scans        uint64
	KeysAccepted uint64
	KeysDropped  uint64
	Resets       uint64
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(b *Buffer) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithTimeout sets the inter-keystroke gap that starts a new scan.
func WithTimeout(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the logger used for state transitions and emissions.
func WithLogger(l *slog.Logger) Option {
	return func(b *Buffer) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver attaches an activity observer.
func WithObserver(o Observer) Option {
	return func(b *Buffer) {
		b.observer = o
	}
}

type subscriber struct {
	id int
	fn func(code string)
}

// Buffer is a scan session: it turns a stream of key events into barcodes.
type Buffer struct {
	mu        sync.Mutex
	clock     Clock
	timeout   time.Duration
	logger    *slog.Logger
	observer  Observer
	buf       strings.Builder
	last      time.Time
	listening bool
	stats     Stats

	subMu  sync.RWMutex
	subs   []subscriber
	nextID int
}

// New creates a Buffer in the Idle state.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		clock:   SystemClock,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.last = b.clock.Now()
	return b
}

// OnScan registers fn to receive every completed barcode. fn runs
// synchronously inside ProcessKeyInput, in registration order. The returned
// function removes the subscription.
func (b *Buffer) OnScan(fn func(code string)) (cancel func()) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	return func() {
		b.subMu.Lock()
		defer b.subMu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// StartListening enables key processing. Calling it while already
// listening does nothing.
func (b *Buffer) StartListening() {
	b.mu.Lock()
	if b.listening {
		b.mu.Unlock()
		return
	}
	b.listening = true
	b.mu.Unlock()

	b.logger.Info("scanner listening started")
	if b.observer != nil {
		b.observer.ListeningChanged(true)
	}
}

// StopListening disables key processing and discards any partial scan.
// Calling it while idle does nothing.
func (b *Buffer) StopListening() {
	b.mu.Lock()
	if !b.listening {
		b.mu.Unlock()
		return
	}
	b.listening = false
	b.buf.Reset()
	b.mu.Unlock()

	b.logger.Info("scanner listening stopped")
	if b.observer != nil {
		b.observer.ListeningChanged(false)
	}
}

// IsListening reports whether key events are being processed.
func (b *Buffer) IsListening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listening
}

// SetTimeout changes the inter-keystroke gap. Non-positive values restore
// DefaultTimeout.
func (b *Buffer) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultTimeout
	}
	b.mu.Lock()
	b.timeout = d
	b.mu.Unlock()
}

// Timeout returns the current inter-keystroke gap.
func (b *Buffer) Timeout() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeout
}

// Pending returns the characters buffered so far.
func (b *Buffer) Pending() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Stats returns a copy of the activity counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// ProcessKeyInput feeds one key event. When k is the terminator and
// characters are buffered, the barcode is delivered to every subscriber
// before ProcessKeyInput returns.
func (b *Buffer) ProcessKeyInput(k Key) {
	b.mu.Lock()
	if !b.listening {
		b.mu.Unlock()
		return
	}

	now := b.clock.Now()
	discarded := 0
	if now.Sub(b.last) > b.timeout {
		discarded = b.buf.Len()
		b.buf.Reset()
		if discarded > 0 {
			b.stats.Resets++
		}
	}
	// Every keystroke refreshes the clock, including unmapped ones.
	b.last = now

	var (
		code    string
		emit    bool
		dropped bool
	)
	if k.IsTerminator() {
		if b.buf.Len() > 0 {
			code = b.buf.String()
			b.buf.Reset()
			b.stats.Scans++
			emit = true
		}
	} else if ch, ok := Char(k); ok {
		b.buf.WriteRune(ch)
		b.stats.KeysAccepted++
	} else {
		b.stats.KeysDropped++
		dropped = true
	}
	b.mu.Unlock()

	if discarded > 0 {
		b.logger.Debug("discarded stale scan buffer", "chars", discarded)
		if b.observer != nil {
			b.observer.BufferReset(discarded)
		}
	}
	if dropped && b.observer != nil {
		b.observer.KeyDropped(k)
	}
	if !emit {
		return
	}

	b.logger.Info("barcode scanned", "barcode", code)
	if b.observer != nil {
		b.observer.ScanEmitted(code)
	}

	b.subMu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.subMu.RUnlock()

	for _, s := range subs {
		s.fn(code)
	}
}

// ProcessKeys feeds a sequence of key events in order.
func (b *Buffer) ProcessKeys(keys ...Key) {
	for _, k := range keys {
		b.ProcessKeyInput(k)
	}
}
