// ABOUTME: Wires config, local store, transport, session and API client for the console binaries
// ABOUTME: Also owns the metrics registry and builds health monitors and chat sessions

package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/2389/coven-console/internal/chat"
	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/health"
	"github.com/2389/coven-console/internal/metrics"
	"github.com/2389/coven-console/internal/probe"
	"github.com/2389/coven-console/internal/session"
	"github.com/2389/coven-console/internal/store"
	"github.com/2389/coven-console/internal/transport"
)

// EnvStorePath overrides [store] path.
const EnvStorePath = "COVEN_CONSOLE_DB"

// Console holds the long-lived pieces a console binary needs.
type Console struct {
	Config   *config.Config
	Client   *client.Client
	Sessions *session.Manager
	Store    *store.SQLiteStore
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	transport *transport.Transport
	breaker   *transport.Breaker
	logger    *slog.Logger
}

// initStore opens the local database, honouring the environment override.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	path := cfg.Store.Path
	if envPath := os.Getenv(EnvStorePath); envPath != "" {
		path = envPath
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New opens the store, builds the transport and returns a ready Console.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Console, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	tr, err := transport.New(ctx, cfg.Tailscale, cfg.API.Timeout, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	sessions := session.NewManager(s, logger)
	resolver := config.NewResolver(cfg.API, tr.HTTPClient, s, logger)

	c := &Console{
		Config:    cfg,
		Sessions:  sessions,
		Store:     s,
		Metrics:   m,
		Registry:  reg,
		transport: tr,
		logger:    logger.With("component", "console"),
	}

	opts := client.Options{
		Resolver:   resolver,
		HTTPClient: tr.HTTPClient,
		Tokens:     sessions,
		Recorder:   m,
		Logger:     logger,
		Timeout:    cfg.API.Timeout,
		MaxChars:   cfg.Chat.MaxChars,
	}
	if cfg.Breaker.Enabled {
		c.breaker = transport.NewBreaker(cfg.Breaker, logger)
		opts.Breaker = c.breaker
	}
	c.Client = client.New(opts)

	return c, nil
}

// NewMonitor builds a health monitor reporting into the console's metrics.
func (c *Console) NewMonitor() *health.Monitor {
	opts := health.OptionsFromConfig(c.Config.Health)
	opts.HTTPClient = c.transport.HTTPClient
	opts.Observer = c.Metrics
	opts.Logger = c.logger
	return health.NewMonitor(c.Client, opts)
}

// NewChat builds a chat session mirrored to the local store. Close it when done.
func (c *Console) NewChat() *chat.Session {
	opts := chat.OptionsFromConfig(c.Config.Chat)
	opts.Store = c.Store
	opts.Logger = c.logger
	return chat.NewSession(c.Client, opts)
}

// BreakerState reports the circuit breaker state, or "disabled".
func (c *Console) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State()
}

// Tailnet reports whether requests go through a tailnet.
func (c *Console) Tailnet() bool { return c.transport.Tailnet() }

// ServeMetrics serves /metrics on addr until ctx is cancelled.
func (c *Console) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(c.Registry))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	c.logger.Info("metrics listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving metrics: %w", err)
	}
}

// ServeProbe serves the gRPC health probe for mon on addr until ctx is cancelled.
func (c *Console) ServeProbe(ctx context.Context, addr string, mon *health.Monitor) error {
	p := probe.New(c.logger)
	stop := p.Follow(mon)
	defer stop()
	return p.ListenAndServe(ctx, addr)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Close releases the transport and the store.
func (c *Console) Close() error {
	var errs []error
	errs = appendCloseError(errs, "transport close", c.transport.Close())
	errs = appendCloseError(errs, "store close", c.Store.Close())
	return errors.Join(errs...)
}
