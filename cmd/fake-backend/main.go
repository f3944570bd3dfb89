// ABOUTME: In-memory fake coven backend for local development and E2E testing
// ABOUTME: Usage: fake-backend [-addr :8000] [-seed seed.yaml] [-chunk-delay 40ms]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/logging"
	"github.com/2389/coven-console/internal/mockapi"
)

func main() {
	addr := flag.String("addr", ":8000", "HTTP listen address")
	seedPath := flag.String("seed", "", "YAML seed file with users, collections, MCP servers and LLM configs")
	secret := flag.String("secret", os.Getenv("FAKE_BACKEND_SECRET"), "token signing secret (random when empty)")
	chunkDelay := flag.Duration("chunk-delay", 40*time.Millisecond, "delay between streamed chat chunks")
	healthInterval := flag.Duration("health-interval", 5*time.Second, "period between health socket frames")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger := logging.Setup(config.LoggingConfig{Level: *level}, os.Stderr)
	slog.SetDefault(logger)

	opts := mockapi.Options{
		Secret:         []byte(*secret),
		ChunkDelay:     *chunkDelay,
		HealthInterval: *healthInterval,
		Logger:         logger,
	}

	if err := run(*addr, *seedPath, opts, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, seedPath string, opts mockapi.Options, logger *slog.Logger) error {
	srv := mockapi.New(opts)
	if seedPath != "" {
		seed, err := mockapi.LoadSeed(seedPath)
		if err != nil {
			return err
		}
		if err := srv.ApplySeed(seed); err != nil {
			return fmt.Errorf("applying seed: %w", err)
		}
		logger.Info("seed loaded", "path", seedPath, "users", len(seed.Users), "collections", len(seed.Collections))
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	logger.Info("fake backend listening", "addr", addr, "version", mockapi.Version)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
