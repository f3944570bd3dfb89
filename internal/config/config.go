// ABOUTME: Configuration loading and parsing for coven-console
// ABOUTME: Supports TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the complete coven-console configuration
type Config struct {
	API       APIConfig       `toml:"api"`
	Store     StoreConfig     `toml:"store"`
	Health    HealthConfig    `toml:"health"`
	Chat      ChatConfig      `toml:"chat"`
	Breaker   BreakerConfig   `toml:"breaker"`
	Tailscale TailscaleConfig `toml:"tailscale"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Probe     ProbeConfig     `toml:"probe"`
}

// APIConfig describes how to reach the backend
type APIConfig struct {
	// BaseURL pins the backend URL. When empty it is resolved at runtime from ConfigURL.
	BaseURL   string        `toml:"base_url"`
	ConfigURL string        `toml:"config_url"`
	Timeout   time.Duration `toml:"-"`

	TimeoutRaw string `toml:"timeout"`
}

// StoreConfig holds local database configuration
type StoreConfig struct {
	Path string `toml:"path"`
}

// HealthConfig holds health monitor timing configuration
type HealthConfig struct {
	WSPath        string        `toml:"ws_path"`
	HTTPPath      string        `toml:"http_path"`
	Factor        float64       `toml:"factor"`
	MaxAttempts   int           `toml:"max_attempts"`
	FallbackAfter int           `toml:"fallback_after"`
	BaseDelay     time.Duration `toml:"-"`
	MaxDelay      time.Duration `toml:"-"`
	PollInterval  time.Duration `toml:"-"`

	// Raw string values for TOML unmarshaling
	BaseDelayRaw    string `toml:"base_delay"`
	MaxDelayRaw     string `toml:"max_delay"`
	PollIntervalRaw string `toml:"poll_interval"`
}

// ChatConfig holds chat composer limits
type ChatConfig struct {
	MaxChars  int           `toml:"max_chars"`
	SendRate  float64       `toml:"send_rate"`
	SendBurst int           `toml:"send_burst"`
	DedupeTTL time.Duration `toml:"-"`

	DedupeTTLRaw string `toml:"dedupe_ttl"`
}

// BreakerConfig holds circuit breaker settings for API calls
type BreakerConfig struct {
	Enabled             bool          `toml:"enabled"`
	ConsecutiveFailures uint32        `toml:"consecutive_failures"`
	OpenTimeout         time.Duration `toml:"-"`

	OpenTimeoutRaw string `toml:"open_timeout"`
}

// TailscaleConfig holds tsnet configuration for reaching a backend on a tailnet
type TailscaleConfig struct {
	Enabled   bool   `toml:"enabled"`
	Hostname  string `toml:"hostname"`
	AuthKey   string `toml:"auth_key"`
	StateDir  string `toml:"state_dir"`
	Ephemeral bool   `toml:"ephemeral"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds the metrics listener address
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// ProbeConfig holds the gRPC health probe listener address
type ProbeConfig struct {
	GRPCAddr string `toml:"grpc_addr"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Health: HealthConfig{
			WSPath:        "/api/ws/health",
			HTTPPath:      "/health",
			Factor:        2,
			MaxAttempts:   5,
			FallbackAfter: 3,
			BaseDelay:     time.Second,
			MaxDelay:      30 * time.Second,
			PollInterval:  5 * time.Second,
		},
		Chat: ChatConfig{
			MaxChars:  2000,
			SendRate:  1,
			SendBurst: 3,
			DedupeTTL: 10 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:             true,
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the path to the console config file.
// Priority: COVEN_CONSOLE_CONFIG env var > XDG_CONFIG_HOME/coven/console.toml > ~/.config/coven/console.toml
func DefaultPath() string {
	if envPath := os.Getenv("COVEN_CONSOLE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "console.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "console.toml")
}

// DefaultStorePath returns the path to the local state database.
// Priority: XDG_DATA_HOME/coven/console.db > ~/.local/share/coven/console.db
func DefaultStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "console.db"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven", "console.db")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A missing file is not an error: the defaults are returned instead.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(string(data))
}

// Parse decodes TOML config content on top of the defaults.
func Parse(content string) (*Config, error) {
	cfg := Default()

	if _, err := toml.Decode(expandEnvVars(content), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that configuration values are usable.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	urls := []struct{ name, raw string }{
		{"api.base_url", c.API.BaseURL},
		{"api.config_url", c.API.ConfigURL},
	}
	for _, u := range urls {
		if u.raw == "" {
			continue
		}
		parsed, err := url.Parse(u.raw)
		if err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", u.name, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must use http or https scheme", u.name)
		}
	}

	if c.Health.Factor < 1 {
		return fmt.Errorf("health.factor must be >= 1")
	}
	if c.Health.MaxAttempts < 1 {
		return fmt.Errorf("health.max_attempts must be >= 1")
	}
	if c.Health.FallbackAfter < 1 {
		return fmt.Errorf("health.fallback_after must be >= 1")
	}
	if c.Chat.MaxChars < 1 {
		return fmt.Errorf("chat.max_chars must be >= 1")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"api.timeout", cfg.API.TimeoutRaw, &cfg.API.Timeout},
		{"health.base_delay", cfg.Health.BaseDelayRaw, &cfg.Health.BaseDelay},
		{"health.max_delay", cfg.Health.MaxDelayRaw, &cfg.Health.MaxDelay},
		{"health.poll_interval", cfg.Health.PollIntervalRaw, &cfg.Health.PollInterval},
		{"chat.dedupe_ttl", cfg.Chat.DedupeTTLRaw, &cfg.Chat.DedupeTTL},
		{"breaker.open_timeout", cfg.Breaker.OpenTimeoutRaw, &cfg.Breaker.OpenTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
