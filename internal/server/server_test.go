package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulse/internal/config"
)

type fakeStatus struct {
	status     map[string][]string
	discovered bool
}

func (f fakeStatus) Status() map[string][]string { return f.status }
func (f fakeStatus) Discovered() bool            { return f.discovered }

func newTestServer(metrics http.Handler) *Server {
	return New(config.DefaultConfig().HTTP, "pulse-test", fakeStatus{
		status: map[string][]string{
			"finance": {"stripe"},
			"ads":     {},
		},
		discovered: true,
	}, metrics, nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatus(t *testing.T) {
	rec := get(t, newTestServer(nil).Router(), "/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"finance":["stripe"],"ads":[]}`, rec.Body.String())
}

func TestDomainStatus(t *testing.T) {
	router := newTestServer(nil).Router()

	rec := get(t, router, "/status/ads")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"domain":"ads","providers":[]}`, rec.Body.String())

	rec = get(t, router, "/status/crm")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(nil).Router(), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "pulse-test", body["service"])
	assert.Equal(t, true, body["discovered"])
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pulse_active_providers 1\n")
	})

	rec := get(t, newTestServer(metrics).Router(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pulse_active_providers")

	rec = get(t, newTestServer(nil).Router(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newTestServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/status")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "stripe"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
