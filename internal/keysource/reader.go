package keysource

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
)

// ReaderSource replays text as key presses, one key per rune, with each
// newline acting as the scanner's Enter. It is used for piping roll numbers
// into the headless runner and for simulation.
type ReaderSource struct {
	r io.Reader

	mu      sync.Mutex
	running bool
	done    chan struct{}
	err     error
}

// NewReaderSource creates a source reading from r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// Available always succeeds.
func (s *ReaderSource) Available() (bool, string) {
	return true, "reading key input from stream"
}

// Start reads until EOF, a read error or ctx cancellation. The read loop
// cannot interrupt a blocked Read, so cancellation takes effect at the next
// rune.
func (s *ReaderSource) Start(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.done = make(chan struct{})

	go s.readLoop(ctx, sink, s.done)
	return nil
}

func (s *ReaderSource) readLoop(ctx context.Context, sink Sink, done chan struct{}) {
	defer close(done)

	br := bufio.NewReader(s.r)
	var err error
	for {
		if ctx.Err() != nil || !s.IsRunning() {
			break
		}
		var r rune
		r, _, err = br.ReadRune()
		if err != nil {
			break
		}
		if r == '\r' {
			continue
		}
		sink.ProcessKeyInput(FromRune(r))
	}

	s.mu.Lock()
	s.running = false
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	s.mu.Unlock()
}

// IsRunning reports whether the read loop is active.
func (s *ReaderSource) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done is closed when the input is exhausted. It is nil before Start.
func (s *ReaderSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err returns the read error that ended the loop, if any.
func (s *ReaderSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop asks the read loop to exit.
func (s *ReaderSource) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}
