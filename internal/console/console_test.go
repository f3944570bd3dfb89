// ABOUTME: Tests for console wiring against the in-memory fake backend
// ABOUTME: Checks the store override, metrics recording, monitor and chat construction

package console

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/health"
	"github.com/2389/coven-console/internal/metrics"
	"github.com/2389/coven-console/internal/mockapi"
	"github.com/2389/coven-console/internal/session"
)

func newConsole(t *testing.T) (*Console, *mockapi.Server) {
	t.Helper()
	t.Setenv(session.EnvToken, "")
	t.Setenv(EnvStorePath, filepath.Join(t.TempDir(), "console.db"))

	api := mockapi.New(mockapi.Options{HealthInterval: 20 * time.Millisecond})
	require.NoError(t, api.ApplySeed(&mockapi.Seed{Users: []mockapi.SeedUser{
		{Email: "alice@example.com", Name: "Alice"},
	}}))
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.API.BaseURL = ts.URL
	cfg.Health.BaseDelay = 10 * time.Millisecond
	cfg.Health.MaxDelay = 20 * time.Millisecond

	c, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	return c, api
}

func TestConsole_SignInRecordsMetrics(t *testing.T) {
	c, api := newConsole(t)
	ctx := context.Background()

	require.NoError(t, c.Client.RequestOTP(ctx, "alice@example.com"))
	_, err := c.Client.VerifyOTP(ctx, "alice@example.com", api.LastOTP("alice@example.com"))
	require.NoError(t, err)

	info, err := c.Sessions.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info.Email)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Metrics.APIRequests.WithLabelValues("POST", "200")))
	assert.Equal(t, "closed", c.BreakerState())
	assert.False(t, c.Tailnet())
}

func TestConsole_MonitorConnects(t *testing.T) {
	c, _ := newConsole(t)
	mon := c.NewMonitor()

	connected := make(chan struct{}, 1)
	unsubscribe := mon.OnConnectivity(func(conn health.Connectivity) {
		if conn.Connected {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mon.Run(ctx) }()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor never connected")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Connected))

	cancel()
	<-done
}

func TestConsole_ChatMirrorsToStore(t *testing.T) {
	c, api := newConsole(t)
	ctx := context.Background()

	tok, err := api.IssueToken("alice@example.com")
	require.NoError(t, err)
	require.NoError(t, c.Sessions.Save(ctx, tok, "alice@example.com"))

	s := c.NewChat()
	defer s.Close()

	_, err = s.Send(ctx, "hello there", nil)
	require.NoError(t, err)

	msgs, err := c.Store.GetChatMessages(ctx, s.SessionID())
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestConsole_ServeMetrics(t *testing.T) {
	c, _ := newConsole(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.ServeMetrics(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)

	// The handler itself is exercised directly
	rec := httptest.NewRecorder()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(c.Registry))
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "coven_console_"))
}
