// ABOUTME: Tests for the HTTP transport and circuit breaker
// ABOUTME: Uses httptest backends that fail on demand

package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/config"
)

func TestNew_PlainHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr, err := New(context.Background(), config.TailscaleConfig{}, 5*time.Second, nil)
	require.NoError(t, err)
	defer tr.Close()
	assert.False(t, tr.Tailnet())
	assert.Zero(t, tr.HTTPClient.Timeout, "streams must not be cut off by a client timeout")

	resp, err := tr.HTTPClient.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestNew_TailscaleNeedsAuthKey(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "")
	_, err := New(context.Background(), config.TailscaleConfig{
		Enabled:  true,
		Hostname: "console",
		StateDir: t.TempDir(),
	}, time.Second, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth key required")
}

func TestResolveStateDir(t *testing.T) {
	got, err := resolveStateDir("/explicit")
	require.NoError(t, err)
	assert.Equal(t, "/explicit", got)

	t.Setenv("XDG_DATA_HOME", "/data")
	got, err = resolveStateDir("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "coven", "console-tailscale"), got)
}

func TestResolveAuthKey_Env(t *testing.T) {
	t.Setenv("TS_AUTHKEY", "tskey-env")
	got, err := resolveAuthKey("")
	require.NoError(t, err)
	assert.Equal(t, "tskey-env", got)

	got, err = resolveAuthKey("tskey-config")
	require.NoError(t, err)
	assert.Equal(t, "tskey-config", got)
}

func failingBackend(t *testing.T, status *atomic.Int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func get(srv *httptest.Server) func() (*http.Response, error) {
	return func() (*http.Response, error) {
		resp, err := srv.Client().Get(srv.URL)
		if resp != nil {
			resp.Body.Close()
		}
		return resp, err
	}
}

func TestBreaker_OpensOn5xx(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv, hits := failingBackend(t, &status)

	b := NewBreaker(config.BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: 50 * time.Millisecond}, nil)

	for i := 0; i < 3; i++ {
		resp, err := b.Do(get(srv))
		require.NoError(t, err, "5xx responses are passed through")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Do(get(srv))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(3), hits.Load(), "open breaker must not reach the backend")

	// Half-open after the timeout; a success closes it again
	status.Store(http.StatusOK)
	time.Sleep(60 * time.Millisecond)
	resp, err := b.Do(get(srv))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_4xxIsNotAFailure(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	srv, _ := failingBackend(t, &status)

	b := NewBreaker(config.BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)
	for i := 0; i < 5; i++ {
		resp, err := b.Do(get(srv))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_TransportErrorsCount(t *testing.T) {
	b := NewBreaker(config.BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, nil)
	boom := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		_, err := b.Do(func() (*http.Response, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", b.State())
}

func TestBreaker_CancellationIsNotAFailure(t *testing.T) {
	b := NewBreaker(config.BreakerConfig{ConsecutiveFailures: 1, OpenTimeout: time.Minute}, nil)
	_, err := b.Do(func() (*http.Response, error) { return nil, context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.State())
}
