// ABOUTME: Backend health monitor over a WebSocket with exponential backoff
// ABOUTME: Falls back to HTTP polling for good after repeated abnormal closes or exhausted reconnects

package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/config"
)

// Mode is how the monitor currently learns about backend health.
type Mode string

const (
	ModeWebSocket Mode = "websocket"
	ModePolling   Mode = "polling"
	ModeStopped   Mode = "stopped"
)

// codeAbnormal stands in for dial failures and drops without a close frame
const codeAbnormal = int(websocket.StatusAbnormalClosure)

// Connectivity is a change in the monitor's view of the backend.
type Connectivity struct {
	Connected bool
	Mode      Mode
	// CloseCode is set when a socket ended abnormally.
	CloseCode int
	Err       error
}

// Snapshot is the monitor state at one point in time.
type Snapshot struct {
	Mode       Mode
	Connected  bool
	Attempts   int
	Failures   int
	LastCode   int
	LastStatus *client.HealthStatus
}

// Backend is what the monitor needs from the API client.
type Backend interface {
	BaseURL(ctx context.Context) (string, error)
	Token(ctx context.Context) (string, error)
	Health(ctx context.Context) (*client.HealthStatus, error)
}

// Observer receives monitor events for metrics. Implementations must be safe for concurrent use.
type Observer interface {
	SetConnected(connected bool)
	SetMode(mode string)
	Reconnect()
	AbnormalClose(code int)
	Poll(ok bool)
}

// Options tunes the monitor. Zero values take the defaults of config.Default().
type Options struct {
	WSPath        string
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Factor        float64
	MaxAttempts   int
	FallbackAfter int
	PollInterval  time.Duration

	// HTTPClient performs the WebSocket handshake.
	HTTPClient *http.Client
	Observer   Observer
	Logger     *slog.Logger
}

// OptionsFromConfig maps the [health] config section to Options.
func OptionsFromConfig(cfg config.HealthConfig) Options {
	return Options{
		WSPath:        cfg.WSPath,
		BaseDelay:     cfg.BaseDelay,
		MaxDelay:      cfg.MaxDelay,
		Factor:        cfg.Factor,
		MaxAttempts:   cfg.MaxAttempts,
		FallbackAfter: cfg.FallbackAfter,
		PollInterval:  cfg.PollInterval,
	}
}

func (o *Options) applyDefaults() {
	def := config.Default().Health
	if o.WSPath == "" {
		o.WSPath = def.WSPath
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = def.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.Factor < 1 {
		o.Factor = def.Factor
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.FallbackAfter <= 0 {
		o.FallbackAfter = def.FallbackAfter
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Monitor tracks backend liveness and fans changes out to subscribers.
type Monitor struct {
	backend Backend
	opts    Options
	logger  *slog.Logger

	mu         sync.Mutex
	mode       Mode
	connected  bool
	attempts   int
	failures   int
	lastCode   int
	lastStatus *client.HealthStatus

	subs *subscribers
}

// NewMonitor creates a Monitor. Call Run to start it.
func NewMonitor(backend Backend, opts Options) *Monitor {
	opts.applyDefaults()
	logger := opts.Logger.With("component", "health")
	return &Monitor{
		backend: backend,
		opts:    opts,
		logger:  logger,
		mode:    ModeWebSocket,
		subs:    newSubscribers(logger),
	}
}

// OnConnectivity registers fn for connectivity changes.
func (m *Monitor) OnConnectivity(fn func(Connectivity)) (unsubscribe func()) {
	return m.subs.addConnectivity(fn)
}

// OnStatus registers fn for every health report received.
func (m *Monitor) OnStatus(fn func(client.HealthStatus)) (unsubscribe func()) {
	return m.subs.addStatus(fn)
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Mode:      m.mode,
		Connected: m.connected,
		Attempts:  m.attempts,
		Failures:  m.failures,
		LastCode:  m.lastCode,
	}
	if m.lastStatus != nil {
		st := *m.lastStatus
		s.LastStatus = &st
	}
	return s
}

// Backoff returns the delay before reconnect attempt n (zero based).
func Backoff(n int, base, max time.Duration, factor float64) time.Duration {
	d := float64(base) * math.Pow(factor, float64(n))
	if d > float64(max) || math.IsInf(d, 0) {
		return max
	}
	return time.Duration(d)
}

// Run monitors until ctx is done or the backend closes the socket normally.
// A normal close returns nil; cancellation returns ctx.Err().
func (m *Monitor) Run(ctx context.Context) error {
	m.setMode(ModeWebSocket)
	m.logger.Info("health monitor starting", "ws_path", m.opts.WSPath)

	for {
		code, err := m.session(ctx)
		if ctx.Err() != nil {
			m.setConnected(false)
			return ctx.Err()
		}

		if code == int(websocket.StatusNormalClosure) || code == int(websocket.StatusGoingAway) {
			m.logger.Info("health socket closed normally", "code", code)
			m.setConnected(false)
			m.setMode(ModeStopped)
			m.subs.emitConnectivity(Connectivity{Connected: false, Mode: ModeStopped, CloseCode: code})
			return nil
		}

		fallback, delay := m.abnormalClose(code, err)
		if fallback {
			return m.poll(ctx)
		}

		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

// abnormalClose records a failed or dropped socket. It reports whether to fall back
// to polling, and otherwise how long to wait before redialing.
func (m *Monitor) abnormalClose(code int, err error) (bool, time.Duration) {
	m.mu.Lock()
	m.connected = false
	m.lastCode = code
	m.failures++
	failures, attempts := m.failures, m.attempts

	fallback := failures >= m.opts.FallbackAfter || attempts >= m.opts.MaxAttempts
	var delay time.Duration
	if !fallback {
		delay = Backoff(attempts, m.opts.BaseDelay, m.opts.MaxDelay, m.opts.Factor)
		m.attempts++
	}
	m.mu.Unlock()

	if o := m.opts.Observer; o != nil {
		o.SetConnected(false)
		o.AbnormalClose(code)
		if !fallback {
			o.Reconnect()
		}
	}

	m.logger.Warn("health socket closed abnormally",
		"code", code,
		"failures", failures,
		"attempts", attempts,
		"error", err,
	)
	m.subs.emitConnectivity(Connectivity{Connected: false, Mode: ModeWebSocket, CloseCode: code, Err: err})

	if fallback {
		m.logger.Warn("switching to http polling", "failures", failures, "attempts", attempts)
	}
	return fallback, delay
}

// session dials once and reads until the socket ends. It returns the close code.
func (m *Monitor) session(ctx context.Context) (int, error) {
	u, err := m.socketURL(ctx)
	if err != nil {
		return codeAbnormal, err
	}

	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: m.opts.HTTPClient})
	if err != nil {
		return codeAbnormal, fmt.Errorf("dialing health socket: %w", err)
	}
	defer conn.CloseNow()

	m.mu.Lock()
	m.attempts = 0
	m.connected = true
	m.mu.Unlock()
	if o := m.opts.Observer; o != nil {
		o.SetConnected(true)
	}
	m.logger.Debug("health socket open")
	m.subs.emitConnectivity(Connectivity{Connected: true, Mode: ModeWebSocket})

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return 0, ctx.Err()
			}
			code := int(websocket.CloseStatus(err))
			if code == -1 {
				code = codeAbnormal
			}
			return code, err
		}
		if typ != websocket.MessageText {
			continue
		}

		var st client.HealthStatus
		if err := json.Unmarshal(data, &st); err != nil {
			m.logger.Warn("ignoring malformed health frame", "error", err)
			continue
		}

		m.mu.Lock()
		m.failures = 0
		m.lastStatus = &st
		m.mu.Unlock()
		m.subs.emitStatus(st)
	}
}

// socketURL builds the ws(s) URL with the token query when signed in
func (m *Monitor) socketURL(ctx context.Context) (string, error) {
	base, err := m.backend.BaseURL(ctx)
	if err != nil {
		return "", err
	}
	token, err := m.backend.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("loading token: %w", err)
	}
	return SocketURL(base, m.opts.WSPath, token)
}

// SocketURL converts an http(s) base URL to the ws(s) health socket URL.
func SocketURL(base, path, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// poll checks GET /health every PollInterval until ctx is done. It never returns to the socket.
func (m *Monitor) poll(ctx context.Context) error {
	m.setMode(ModePolling)

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		m.pollOnce(ctx)
		select {
		case <-ctx.Done():
			m.setConnected(false)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context) {
	st, err := m.backend.Health(ctx)
	if ctx.Err() != nil {
		return
	}
	ok := err == nil
	if o := m.opts.Observer; o != nil {
		o.Poll(ok)
	}

	if !ok {
		m.setConnected(false)
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) {
			m.logger.Debug("health poll failed", "error", err)
		}
		m.subs.emitConnectivity(Connectivity{Connected: false, Mode: ModePolling, Err: err})
		return
	}

	m.mu.Lock()
	m.lastStatus = st
	m.mu.Unlock()
	m.setConnected(true)
	m.subs.emitConnectivity(Connectivity{Connected: true, Mode: ModePolling})
	m.subs.emitStatus(*st)
}

func (m *Monitor) setMode(mode Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	if o := m.opts.Observer; o != nil {
		o.SetMode(string(mode))
	}
}

func (m *Monitor) setConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
	if o := m.opts.Observer; o != nil {
		o.SetConnected(connected)
	}
}

// sleep waits for d or until ctx is done. It reports whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
