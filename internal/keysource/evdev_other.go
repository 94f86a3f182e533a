//go:build !linux

package keysource

import "context"

// Discover is only supported on Linux.
func Discover() ([]Device, error) {
	return nil, ErrNotAvailable
}

// Available returns false on platforms without evdev.
func (s *EvdevSource) Available() (bool, string) {
	return false, "evdev input is only available on Linux"
}

// Start returns ErrNotAvailable on platforms without evdev.
func (s *EvdevSource) Start(ctx context.Context, sink Sink) error {
	return ErrNotAvailable
}

// Stop is a no-op on platforms without evdev.
func (s *EvdevSource) Stop() error {
	return nil
}
