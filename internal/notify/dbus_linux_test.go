//go:build linux

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollscan/internal/lookup"
	"rollscan/internal/store"
)

type fakeBus struct {
	calls [][]interface{}
	ids   []uint32
	err   error
}

func (f *fakeBus) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	f.calls = append(f.calls, append([]interface{}{method}, args...))
	if f.err != nil {
		return &dbus.Call{Err: f.err}
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return &dbus.Call{Body: []interface{}{id}}
}

func TestDBusNotifierReplacesPrevious(t *testing.T) {
	bus := &fakeBus{ids: []uint32{41, 41}}
	n := &DBusNotifier{cfg: Config{AppName: "rollscan", Timeout: 3 * time.Second}, obj: bus}

	student := &store.Student{RollNumber: "CS001", FirstName: "John", LastName: "Doe"}
	require.NoError(t, n.Notify(context.Background(), lookup.Result{RollNumber: "CS001", Student: student}))
	require.NoError(t, n.Notify(context.Background(), lookup.Result{RollNumber: "X"}))

	require.Len(t, bus.calls, 2)
	first := bus.calls[0]
	assert.Equal(t, "org.freedesktop.Notifications.Notify", first[0])
	assert.Equal(t, "rollscan", first[1])
	assert.Equal(t, uint32(0), first[2])
	assert.Equal(t, "dialog-information", first[3])
	assert.Equal(t, "Student found: John Doe", first[4])
	assert.Equal(t, int32(3000), first[8])

	second := bus.calls[1]
	assert.Equal(t, uint32(41), second[2])
	assert.Equal(t, "dialog-warning", second[3])
}

func TestDBusNotifierError(t *testing.T) {
	bus := &fakeBus{err: errors.New("org.freedesktop.DBus.Error.ServiceUnknown")}
	n := &DBusNotifier{cfg: Config{AppName: "rollscan"}, obj: bus}

	err := n.Notify(context.Background(), lookup.Result{RollNumber: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post notification")
	assert.Equal(t, int32(-1), bus.calls[0][8])
}
