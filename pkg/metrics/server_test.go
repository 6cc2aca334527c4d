package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	Reset()
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	reg := InitRegistry()
	t.Cleanup(Reset)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Metrics(t *testing.T) {
	reg := InitRegistry()
	t.Cleanup(Reset)
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "ovsdp_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	rec := get(t, NewServer(ServerConfig{}).routes(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ovsdp_test_total 3")
}

func TestServer_MetricsDisabled(t *testing.T) {
	Reset()
	rec := get(t, NewServer(ServerConfig{}).routes(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	ready := false
	h := NewServer(ServerConfig{ReadyFunc: func() bool { return ready }}).routes()

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/healthz").Code)
	ready = true
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}

func TestServer_DebugSessions(t *testing.T) {
	h := NewServer(ServerConfig{SessionsFunc: func() any {
		return []map[string]any{{"pid": 1}, {"pid": 2}}
	}}).routes()

	rec := get(t, h, "/debug/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []map[string]int{{"pid": 1}, {"pid": 2}}, got)

	assert.Equal(t, http.StatusNotFound, get(t, NewServer(ServerConfig{}).routes(), "/debug/sessions").Code)
}

func TestServer_StartStop(t *testing.T) {
	Reset()
	srv := NewServer(ServerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	addr := srv.Addr()
	require.NotEmpty(t, addr)
	port := addr[strings.LastIndex(addr, ":"):]

	resp, err := http.Get("http://127.0.0.1" + port + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
