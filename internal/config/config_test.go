// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers TOML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "console.toml")

	configContent := `
[api]
base_url = "https://coven.example.com/"
timeout = "10s"

[store]
path = "./test.db"

[health]
base_delay = "500ms"
max_delay = "20s"
poll_interval = "2s"
max_attempts = 4
fallback_after = 2

[chat]
max_chars = 1000
dedupe_ttl = "3s"

[breaker]
enabled = false

[logging]
level = "debug"
format = "json"

[metrics]
addr = ":9100"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://coven.example.com/", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "./test.db", cfg.Store.Path)

	assert.Equal(t, 500*time.Millisecond, cfg.Health.BaseDelay)
	assert.Equal(t, 20*time.Second, cfg.Health.MaxDelay)
	assert.Equal(t, 2*time.Second, cfg.Health.PollInterval)
	assert.Equal(t, 4, cfg.Health.MaxAttempts)
	assert.Equal(t, 2, cfg.Health.FallbackAfter)
	// Untouched fields keep their defaults
	assert.Equal(t, 2.0, cfg.Health.Factor)
	assert.Equal(t, "/api/ws/health", cfg.Health.WSPath)

	assert.Equal(t, 1000, cfg.Chat.MaxChars)
	assert.Equal(t, 3*time.Second, cfg.Chat.DedupeTTL)
	assert.False(t, cfg.Breaker.Enabled)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Second, cfg.Health.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Health.MaxDelay)
	assert.Equal(t, 5*time.Second, cfg.Health.PollInterval)
	assert.Equal(t, 5, cfg.Health.MaxAttempts)
	assert.Equal(t, 3, cfg.Health.FallbackAfter)
	assert.Equal(t, 2000, cfg.Chat.MaxChars)
	assert.True(t, cfg.Breaker.Enabled)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_COVEN_URL", "http://from-env:8000")
	t.Setenv("TEST_TS_KEY", "tskey-from-env")

	cfg, err := Parse(`
[api]
base_url = "${TEST_COVEN_URL}"

[tailscale]
enabled = true
hostname = "console"
auth_key = "${TEST_TS_KEY}"
`)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8000", cfg.API.BaseURL)
	assert.Equal(t, "tskey-from-env", cfg.Tailscale.AuthKey)
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	cfg, err := Parse(`
[api]
base_url = "${COVEN_TEST_DEFINITELY_UNSET}"
`)
	require.NoError(t, err)
	assert.Empty(t, cfg.API.BaseURL)
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Parse(`
[health]
base_delay = "soon"
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health.base_delay")
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Parse(`[api`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url must use http or https"},
		{"bad config url scheme", func(c *Config) { c.API.ConfigURL = "file:///etc" }, "api.config_url must use http or https"},
		{"factor below one", func(c *Config) { c.Health.Factor = 0.5 }, "health.factor"},
		{"zero attempts", func(c *Config) { c.Health.MaxAttempts = 0 }, "health.max_attempts"},
		{"zero fallback", func(c *Config) { c.Health.FallbackAfter = 0 }, "health.fallback_after"},
		{"zero max chars", func(c *Config) { c.Chat.MaxChars = 0 }, "chat.max_chars"},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv("COVEN_CONSOLE_CONFIG", "/tmp/custom.toml")
	assert.Equal(t, "/tmp/custom.toml", DefaultPath())
}

func TestDefaultPath_XDG(t *testing.T) {
	t.Setenv("COVEN_CONSOLE_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "coven", "console.toml"), DefaultPath())
}

func TestDefaultStorePath_XDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "coven", "console.db"), DefaultStorePath())
}
