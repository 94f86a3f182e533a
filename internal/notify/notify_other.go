//go:build !linux

package notify

import (
	"errors"

	"rollscan/internal/lookup"
)

func newPlatformNotifier(Config) (lookup.Notifier, error) {
	return nil, errors.New("desktop notifications are only supported on Linux")
}
