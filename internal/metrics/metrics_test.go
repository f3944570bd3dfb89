// ABOUTME: Tests for the console Prometheus collectors
// ABOUTME: Reads values back with testutil and scrapes the handler

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/health"
)

// Both interfaces are satisfied by one value
var (
	_ client.Recorder = (*Metrics)(nil)
	_ health.Observer = (*Metrics)(nil)
)

func TestMetrics_Values(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("GET", 200)
	m.ObserveRequest("GET", 200)
	m.ObserveRequest("POST", 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("POST", "0")))

	m.SetConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))
	m.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connected))

	m.SetMode("websocket")
	m.SetMode("polling")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Mode.WithLabelValues("websocket")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mode.WithLabelValues("polling")))

	m.Reconnect()
	m.AbnormalClose(1006)
	m.AbnormalClose(1006)
	m.Poll(true)
	m.Poll(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconnects))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AbnormalCloses.WithLabelValues("1006")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetConnected(true)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "coven_console_health_connected 1")
}

func TestNew_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
