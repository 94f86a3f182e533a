//go:build linux

package keysource

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseGrabLogsFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event0")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewEvdevSource(path, true, logger)

	// A regular file does not support EVIOCGRAB.
	s.releaseGrab(f)

	assert.Contains(t, logs.String(), "release grab failed")
	assert.Contains(t, logs.String(), "path="+path)
}
