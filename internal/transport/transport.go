// ABOUTME: HTTP transport for reaching the backend, optionally through a tailnet
// ABOUTME: With tailscale enabled the console joins as a tsnet node and dials through it

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/coven-console/internal/config"
)

// Transport owns the HTTP client used for REST calls, streams and the health socket.
type Transport struct {
	HTTPClient *http.Client

	ts     *tsnet.Server
	logger *slog.Logger
}

// New builds the transport. timeout bounds connection setup and the wait for response headers;
// it never cuts off a response body that is still streaming.
func New(ctx context.Context, ts config.TailscaleConfig, timeout time.Duration, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{logger: logger.With("component", "transport")}

	if !ts.Enabled {
		t.HTTPClient = &http.Client{Transport: newHTTPTransport(timeout, nil)}
		return t, nil
	}

	srv, err := t.startTailscale(ctx, ts)
	if err != nil {
		return nil, err
	}
	t.ts = srv
	t.HTTPClient = &http.Client{Transport: newHTTPTransport(timeout, srv.Dial)}
	return t, nil
}

func newHTTPTransport(timeout time.Duration, dial func(ctx context.Context, network, addr string) (net.Conn, error)) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if dial != nil {
		tr.DialContext = dial
		tr.Proxy = nil
	}
	if timeout > 0 {
		tr.TLSHandshakeTimeout = timeout
		tr.ResponseHeaderTimeout = timeout
	}
	return tr
}

func (t *Transport) startTailscale(ctx context.Context, cfg config.TailscaleConfig) (*tsnet.Server, error) {
	stateDir, err := resolveStateDir(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveAuthKey(cfg.AuthKey)
	if err != nil {
		return nil, err
	}

	srv := &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       stateDir,
		Ephemeral: cfg.Ephemeral,
		AuthKey:   authKey,
		Logf:      func(string, ...any) {},
	}

	t.logger.Info("starting tailscale node", "hostname", cfg.Hostname, "state_dir", stateDir, "ephemeral", cfg.Ephemeral)
	status, err := srv.Up(ctx)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	t.logStatus(cfg.Hostname, status)
	return srv, nil
}

func (t *Transport) logStatus(hostname string, status *ipnstate.Status) {
	var addr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		addr = status.TailscaleIPs[0].String()
	} else {
		t.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	t.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", addr, "dns_name", dnsName)
}

// Tailnet reports whether requests go through a tsnet node.
func (t *Transport) Tailnet() bool { return t.ts != nil }

// Close shuts down the tailnet node, if any, and idle connections.
func (t *Transport) Close() error {
	t.HTTPClient.CloseIdleConnections()
	if t.ts != nil {
		if err := t.ts.Close(); err != nil {
			return fmt.Errorf("tailscale shutdown: %w", err)
		}
	}
	return nil
}

// resolveStateDir returns the tsnet state directory, defaulting under the user's data dir.
func resolveStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "coven", "console-tailscale"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(home, ".local", "share", "coven", "console-tailscale"), nil
}

// resolveAuthKey returns the auth key from config or TS_AUTHKEY.
func resolveAuthKey(configured string) (string, error) {
	key := configured
	if key == "" {
		key = os.Getenv("TS_AUTHKEY")
	}
	if key == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key or TS_AUTHKEY")
	}
	return key, nil
}
