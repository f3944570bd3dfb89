// ABOUTME: Tests for the health monitor against the fake backend's health socket
// ABOUTME: Uses millisecond backoff so reconnect and fallback paths run quickly

package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/health"
	"github.com/2389/coven-console/internal/mockapi"
)

type countingObserver struct {
	connected  atomic.Bool
	reconnects atomic.Int32
	abnormal   atomic.Int32
	pollsOK    atomic.Int32
	pollsBad   atomic.Int32

	mu    sync.Mutex
	modes []string
}

func (o *countingObserver) SetConnected(c bool) { o.connected.Store(c) }
func (o *countingObserver) Reconnect()          { o.reconnects.Add(1) }
func (o *countingObserver) AbnormalClose(int)   { o.abnormal.Add(1) }
func (o *countingObserver) Poll(ok bool) {
	if ok {
		o.pollsOK.Add(1)
	} else {
		o.pollsBad.Add(1)
	}
}
func (o *countingObserver) SetMode(m string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modes = append(o.modes, m)
}

func fastOptions(obs health.Observer) health.Options {
	return health.Options{
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       2,
		PollInterval: 10 * time.Millisecond,
		Observer:     obs,
	}
}

func newBackend(t *testing.T) (*mockapi.Server, *client.Client) {
	t.Helper()
	api := mockapi.New(mockapi.Options{HealthInterval: 10 * time.Millisecond})
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return api, client.New(client.Options{BaseURL: ts.URL, HTTPClient: ts.Client()})
}

// start runs the monitor in the background. stop cancels it and returns Run's result,
// and is safe to call more than once.
func start(t *testing.T, m *health.Monitor) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	var once sync.Once
	var result error
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case result = <-done:
			case <-time.After(2 * time.Second):
				result = errors.New("monitor did not stop")
				t.Error(result)
			}
		})
		return result
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func TestMonitor_ReceivesStatus(t *testing.T) {
	_, c := newBackend(t)
	m := health.NewMonitor(c, fastOptions(nil))

	var mu sync.Mutex
	var statuses []client.HealthStatus
	m.OnStatus(func(st client.HealthStatus) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	})

	stop := start(t, m)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, health.ModeWebSocket, snap.Mode)
	assert.True(t, snap.Connected)
	require.NotNil(t, snap.LastStatus)
	assert.True(t, snap.LastStatus.Healthy())
	assert.Equal(t, mockapi.Version, snap.LastStatus.Version)

	assert.ErrorIs(t, stop(), context.Canceled)
	assert.False(t, m.Snapshot().Connected)
}

func TestMonitor_FallsBackAfterThreeAbnormalCloses(t *testing.T) {
	api, c := newBackend(t)
	api.CloseNext(1011, 1006, 1011)

	obs := &countingObserver{}
	m := health.NewMonitor(c, fastOptions(obs))

	var mu sync.Mutex
	var events []health.Connectivity
	m.OnConnectivity(func(ev health.Connectivity) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	start(t, m)

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.Mode == health.ModePolling && s.Connected
	}, 2*time.Second, 5*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, 3, snap.Failures)
	assert.Equal(t, 1011, snap.LastCode)
	assert.Equal(t, int32(3), obs.abnormal.Load())
	assert.Equal(t, int32(2), obs.reconnects.Load())
	assert.GreaterOrEqual(t, obs.pollsOK.Load(), int32(1))

	mu.Lock()
	defer mu.Unlock()
	var codes []int
	for _, ev := range events {
		if ev.CloseCode != 0 {
			codes = append(codes, ev.CloseCode)
		}
	}
	assert.Equal(t, []int{1011, 1006, 1011}, codes)
}

func TestMonitor_PollingReportsOutage(t *testing.T) {
	api, c := newBackend(t)
	api.CloseNext(1011, 1011, 1011)
	obs := &countingObserver{}
	m := health.NewMonitor(c, fastOptions(obs))
	start(t, m)

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.Mode == health.ModePolling && s.Connected
	}, 2*time.Second, 5*time.Millisecond)

	api.SetHealthy(false)
	require.Eventually(t, func() bool {
		return !m.Snapshot().Connected
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, obs.pollsBad.Load(), int32(1))

	// Polling is permanent even once the backend recovers
	api.SetHealthy(true)
	require.Eventually(t, func() bool {
		return m.Snapshot().Connected
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, health.ModePolling, m.Snapshot().Mode)
}

func TestMonitor_GivesUpAfterMaxAttempts(t *testing.T) {
	var dials atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ws/health", func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(client.HealthStatus{Status: "ok"})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	opts := fastOptions(nil)
	opts.MaxAttempts = 2
	opts.FallbackAfter = 10
	m := health.NewMonitor(client.New(client.Options{BaseURL: ts.URL, HTTPClient: ts.Client()}), opts)
	start(t, m)

	require.Eventually(t, func() bool {
		return m.Snapshot().Mode == health.ModePolling
	}, 2*time.Second, 5*time.Millisecond)

	// The first dial plus MaxAttempts reconnects
	assert.Equal(t, int32(3), dials.Load())
	assert.Equal(t, 2, m.Snapshot().Attempts)
}

func TestMonitor_StatusResetsFailures(t *testing.T) {
	api, c := newBackend(t)
	api.CloseNext(1011, 1011)

	obs := &countingObserver{}
	m := health.NewMonitor(c, fastOptions(obs))
	start(t, m)

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.Connected && s.Failures == 0 && s.LastStatus != nil
	}, 2*time.Second, 5*time.Millisecond)

	// A third abnormal close is not consecutive, so the socket comes back
	api.CloseActive(1011)
	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return obs.abnormal.Load() == 3 && s.Connected && s.Failures == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, health.ModeWebSocket, m.Snapshot().Mode)
}

func TestMonitor_NormalCloseStops(t *testing.T) {
	api, c := newBackend(t)
	api.CloseNext(1000)

	m := health.NewMonitor(c, fastOptions(nil))
	var stopped atomic.Bool
	m.OnConnectivity(func(ev health.Connectivity) {
		if ev.Mode == health.ModeStopped {
			stopped.Store(true)
		}
	})

	err := m.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, stopped.Load())
	assert.Equal(t, health.ModeStopped, m.Snapshot().Mode)
	assert.Equal(t, 0, m.Snapshot().Failures)
}

func TestMonitor_PanickingSubscriberIsRecovered(t *testing.T) {
	_, c := newBackend(t)
	m := health.NewMonitor(c, fastOptions(nil))

	m.OnConnectivity(func(health.Connectivity) { panic("boom") })
	var got atomic.Int32
	unsubscribe := m.OnStatus(func(client.HealthStatus) { got.Add(1) })

	start(t, m)
	require.Eventually(t, func() bool { return got.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	unsubscribe()
	n := got.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, got.Load(), n+1, "unsubscribed callback kept firing")
}

func TestMonitor_UnresolvableBaseURL(t *testing.T) {
	m := health.NewMonitor(client.New(client.Options{}), fastOptions(nil))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var last health.Connectivity
	var mu sync.Mutex
	m.OnConnectivity(func(ev health.Connectivity) {
		mu.Lock()
		last = ev
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return m.Snapshot().Mode == health.ModePolling
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, last.Connected)
}

func TestBackoff(t *testing.T) {
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for n, w := range want {
		assert.Equal(t, w*time.Second, health.Backoff(n, time.Second, 30*time.Second, 2), "attempt %d", n)
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base, token, want string
	}{
		{"http://localhost:8000", "", "ws://localhost:8000/api/ws/health"},
		{"https://coven.example.com/", "abc", "wss://coven.example.com/api/ws/health?token=abc"},
		{"http://host/prefix", "a b", "ws://host/prefix/api/ws/health?token=a+b"},
	}
	for _, tt := range tests {
		got, err := health.SocketURL(tt.base, "/api/ws/health", tt.token)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := health.SocketURL("ftp://x", "/api/ws/health", "")
	assert.Error(t, err)
}
