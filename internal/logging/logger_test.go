package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulse/registry"
)

var _ registry.Logger = (*Logger)(nil)

func newTestLogger(format string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New("pulse-test", Options{Level: "debug", Format: format, Output: &buf, ErrorInterval: -1})
	return l, &buf
}

func TestLogger_Text(t *testing.T) {
	l, buf := newTestLogger("text")

	l.Info("Provider activated", map[string]interface{}{
		"provider": "stripe",
		"domain":   "finance",
		"error":    "none yet",
	})

	line := buf.String()
	assert.Contains(t, line, "[INFO] [pulse:pulse-test] Provider activated")
	assert.Contains(t, line, `error="none yet" domain=finance provider=stripe`)
}

func TestLogger_JSON(t *testing.T) {
	l, buf := newTestLogger("json")

	l.Warn("Skipping provider candidate", map[string]interface{}{
		"provider": "ga4",
		"level":    "ignored",
		"error":    errors.New("probe panicked"),
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "pulse-test", entry["service"])
	assert.Equal(t, "Skipping provider candidate", entry["message"])
	assert.Equal(t, "ga4", entry["provider"])
	assert.Equal(t, "probe panicked", entry["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	l, buf := newTestLogger("text")
	l.SetLevel("warn")

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	assert.Empty(t, buf.String())

	l.Warn("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_With(t *testing.T) {
	l, buf := newTestLogger("json")
	child := l.With("registry", map[string]interface{}{"discovery_id": "abc"})

	child.Info("Domain populated", map[string]interface{}{"domain": "ads"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "registry", entry["component"])
	assert.Equal(t, "abc", entry["discovery_id"])
	assert.Equal(t, "ads", entry["domain"])

	buf.Reset()
	l.SetFormat("text")
	child.Info("after", nil)
	assert.True(t, strings.Contains(buf.String(), "[registry:pulse-test]"), "children share the sink")
}

func TestLogger_DoesNotMutateFields(t *testing.T) {
	l, _ := newTestLogger("text")
	fields := map[string]interface{}{"error": "x", "endpoint": "/status"}
	l.Info("msg", fields)
	assert.Len(t, fields, 2)
}

func TestLogger_ErrorRateLimit(t *testing.T) {
	var buf bytes.Buffer
	l := New("svc", Options{Level: "info", Format: "text", Output: &buf, ErrorInterval: time.Hour})

	l.Error("first", nil)
	l.Error("second", nil)

	assert.Contains(t, buf.String(), "first")
	assert.NotContains(t, buf.String(), "second")
}

func TestNew_EnvironmentFallback(t *testing.T) {
	t.Setenv("PULSE_LOG_LEVEL", "error")
	t.Setenv("PULSE_LOG_FORMAT", "json")

	var buf bytes.Buffer
	l := New("svc", Options{Output: &buf})
	l.Warn("hidden", nil)
	assert.Empty(t, buf.String())

	l.Error("shown", nil)
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestRateLimiter(t *testing.T) {
	r := NewRateLimiter(time.Hour)
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())

	assert.True(t, NewRateLimiter(0).Allow())
}

func TestDefault(t *testing.T) {
	assert.NotNil(t, Default())

	l, buf := newTestLogger("text")
	SetDefault(l)
	SetDefault(nil)
	Default().With("stripe", nil).Info("hello", nil)
	assert.Contains(t, buf.String(), "[stripe:pulse-test] hello")
}
