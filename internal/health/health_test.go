package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(context.Context) CheckResult { return CheckResult{Status: StatusHealthy} }

func TestOverallStatus(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("database", true, healthy)
	assert.Equal(t, StatusUnknown, c.OverallStatus(), "critical component not yet checked")

	c.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.OverallStatus())

	listening := false
	c.RegisterFunc("scanner", false, ScannerCheck(func() bool { return listening }))
	c.Check(context.Background())
	assert.Equal(t, StatusDegraded, c.OverallStatus())

	listening = true
	c.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.OverallStatus())

	c.RegisterFunc("database", true, DatabaseCheck(func(context.Context) error {
		return errors.New("disk I/O error")
	}))
	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, c.OverallStatus())
	assert.Equal(t, "disk I/O error", results["database"].Error)
	assert.Equal(t, []string{"database", "scanner"}, c.Names())
}

func TestCheckTimeoutAndPanic(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})
	c.RegisterFunc("broken", false, func(context.Context) CheckResult {
		panic("boom")
	})

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, "check timed out", results["slow"].Message)
	assert.Equal(t, StatusUnhealthy, results["broken"].Status)
	assert.Equal(t, "boom", results["broken"].Error)

	last, ok := c.GetResult("broken")
	require.True(t, ok)
	assert.Equal(t, "check panicked", last.Message)
}

func TestDirectoryCheck(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusHealthy, DirectoryCheck(dir)(context.Background()).Status)

	res := DirectoryCheck(filepath.Join(dir, "missing"))(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestHandlers(t *testing.T) {
	c := NewChecker()
	fail := false
	c.RegisterFunc("database", true, DatabaseCheck(func(context.Context) error {
		if fail {
			return errors.New("closed")
		}
		return nil
	}))

	rec := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health?full=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.True(t, resp.Ready)
	assert.Contains(t, resp.Components, "database")

	rec = httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	fail = true
	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Components)
}
