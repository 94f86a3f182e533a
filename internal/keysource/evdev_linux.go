//go:build linux

package keysource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// EVIOCGRAB is _IOW('E', 0x90, int).
const eviocgrab = 0x40044590

const procDevices = "/proc/bus/input/devices"

// Discover lists keyboard-like input devices.
func Discover() ([]Device, error) {
	f, err := os.Open(procDevices)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", procDevices, err)
	}
	defer f.Close()

	devices, err := parseDevices(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", procDevices, err)
	}
	return devices, nil
}

// Available checks that the device can be opened.
func (s *EvdevSource) Available() (bool, string) {
	if s.Path == "" {
		return false, "no input device configured"
	}
	f, err := os.OpenFile(s.Path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return false, fmt.Sprintf("cannot read %s (need to be in 'input' group or run as root)", s.Path)
		}
		return false, fmt.Sprintf("cannot open %s: %v", s.Path, err)
	}
	f.Close()
	return true, fmt.Sprintf("found input device: %s", s.Path)
}

// Start opens the device and forwards key presses to sink until ctx is
// cancelled or Stop is called.
func (s *EvdevSource) Start(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if s.Path == "" {
		return fmt.Errorf("%w: no input device configured", ErrNotAvailable)
	}

	f, err := os.OpenFile(s.Path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrNotAvailable, s.Path, err)
	}

	if s.Grab {
		if err := grab(f, true); err != nil {
			f.Close()
			return fmt.Errorf("grab %s: %w", s.Path, err)
		}
	}

	s.file = f
	s.running = true
	s.err = nil
	done := make(chan struct{})
	s.done = done

	s.Logger.Info("reading scanner device", "path", s.Path, "grab", s.Grab)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}()

	go func() {
		defer close(done)
		err := dispatch(f, sink)

		s.mu.Lock()
		wasRunning := s.running
		s.running = false
		if wasRunning && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.EOF) {
			s.err = err
		}
		s.mu.Unlock()

		if wasRunning {
			s.Logger.Warn("scanner device read failed", "path", s.Path, "error", err)
			f.Close()
		}
	}()

	return nil
}

// Stop releases the device and waits for the read loop to exit.
func (s *EvdevSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	f := s.file
	done := s.done
	s.file = nil
	s.mu.Unlock()

	if s.Grab {
		s.releaseGrab(f)
	}
	err := f.Close()
	<-done

	s.Logger.Info("scanner device released", "path", s.Path)
	return err
}

// releaseGrab ends exclusive access. A failure is only logged since closing
// the descriptor releases the grab as well.
func (s *EvdevSource) releaseGrab(f *os.File) {
	if err := grab(f, false); err != nil {
		s.Logger.Debug("release grab failed", "path", s.Path, "error", err)
	}
}

// grab toggles exclusive access. It goes through SyscallConn so the file
// stays in non-blocking mode and Close can interrupt a pending Read.
func grab(f *os.File, on bool) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	val := 0
	if on {
		val = 1
	}
	var ioctlErr error
	if err := rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetInt(int(fd), eviocgrab, val)
	}); err != nil {
		return err
	}
	return ioctlErr
}
