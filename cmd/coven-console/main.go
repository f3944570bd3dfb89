// ABOUTME: Entry point for coven-console, the command-line client for the coven platform
// ABOUTME: Builds the cobra command tree and the shared console stack

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/console"
	"github.com/2389/coven-console/internal/logging"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _____   _____ _ __         ___ ___  _ __  ___  ___ | | ___
 / __/ _ \ \ / / _ \ '_ \ _____ / __/ _ \| '_ \/ __|/ _ \| |/ _ \
| (_| (_) \ V /  __/ | | |_____| (_| (_) | | | \__ \ (_) | |  __/
 \___\___/ \_/ \___|_| |_|      \___\___/|_| |_|___/\___/|_|\___|
`

// app carries global flags and the console built before each command runs.
type app struct {
	configPath string
	logLevel   string
	jsonOut    bool

	console *console.Console
	logger  *slog.Logger
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}

	a.logger = logging.Setup(cfg.Logging, os.Stderr)
	slog.SetDefault(a.logger)

	c, err := console.New(cmd.Context(), cfg, a.logger)
	if err != nil {
		return err
	}
	a.console = c
	return nil
}

func (a *app) close() {
	if a.console == nil {
		return
	}
	if err := a.console.Close(); err != nil {
		a.logger.Warn("closing console", "error", err)
	}
}

func (a *app) client() *client.Client { return a.console.Client }

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "coven-console",
		Short:             "Command-line client for the coven RAG assistant platform",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.SetVersionTemplate(color.CyanString(banner) + "\n    version: {{.Version}}\n")
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "path to console.toml")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		loginCmd(a), logoutCmd(a), meCmd(a), profileCmd(a), passwordCmd(a),
		healthCmd(a),
		chatCmd(a), sessionsCmd(a),
		docsCmd(a), collectionsCmd(a),
		ragToolsCmd(a), toolsCmd(a),
		mcpCmd(a), llmCmd(a),
		adminCmd(a),
	)
	return root
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{logger: slog.Default()}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		printError(err)
		a.logger.Debug("command failed", "error", err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
