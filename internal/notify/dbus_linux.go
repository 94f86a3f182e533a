//go:build linux

package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"rollscan/internal/lookup"
)

const (
	notificationsName      = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"
)

// busObject is the part of dbus.BusObject used here.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusNotifier posts notifications through the freedesktop notification
// service on the session bus. Consecutive results replace each other.
type DBusNotifier struct {
	cfg Config
	obj busObject

	mu        sync.Mutex
	replaceID uint32
}

var _ lookup.Notifier = (*DBusNotifier)(nil)

func newPlatformNotifier(cfg Config) (lookup.Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return &DBusNotifier{
		cfg: cfg,
		obj: conn.Object(notificationsName, dbus.ObjectPath(notificationsPath)),
	}, nil
}

// Notify posts one notification.
func (n *DBusNotifier) Notify(ctx context.Context, r lookup.Result) error {
	summary, body := Format(r)

	icon := "dialog-information"
	if !r.Found() {
		icon = "dialog-warning"
	}

	timeout := int32(-1)
	if n.cfg.Timeout > 0 {
		timeout = int32(n.cfg.Timeout.Milliseconds())
	}

	n.mu.Lock()
	replaceID := n.replaceID
	n.mu.Unlock()

	call := n.obj.CallWithContext(ctx, notificationsInterface+".Notify", 0,
		n.cfg.AppName,
		replaceID,
		icon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		timeout,
	)

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("post notification: %w", err)
	}

	n.mu.Lock()
	n.replaceID = id
	n.mu.Unlock()
	return nil
}
