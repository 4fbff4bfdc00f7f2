package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stocksync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 5*time.Second, cfg.Status.Interval)
	assert.Zero(t, cfg.Sync.MaxRejections)
	assert.Equal(t, "auto", cfg.Connectivity.Mode)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
store:
  path: /var/lib/stocksync/queue.db
remote:
  base_url: https://shop.example.com
  token: secret
  timeout: 3s
sync:
  max_rejections: 5
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/stocksync/queue.db", cfg.Store.Path)
	assert.Equal(t, "https://shop.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "secret", cfg.Remote.Token)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 5, cfg.Sync.MaxRejections)
	assert.Equal(t, "json", cfg.Log.Format)

	// Untouched keys keep their defaults.
	assert.Equal(t, 60*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "remote:\n  base_ulr: https://typo.example.com\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_ulr")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeFile(t, "remote:\n  token: from-file\n")
	t.Setenv("STOCKSYNC_REMOTE_TOKEN", "from-env")
	t.Setenv("STOCKSYNC_REMOTE_BASE_URL", "http://localhost:3000")
	t.Setenv("STOCKSYNC_SYNC_MAX_REJECTIONS", "2")
	t.Setenv("STOCKSYNC_CONNECTIVITY_POLL_INTERVAL", "500ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Remote.Token)
	assert.Equal(t, "http://localhost:3000", cfg.Remote.BaseURL)
	assert.Equal(t, 2, cfg.Sync.MaxRejections)
	assert.Equal(t, 500*time.Millisecond, cfg.Connectivity.PollInterval)
}

func TestLoad_BadEnvironmentValue(t *testing.T) {
	t.Setenv("STOCKSYNC_SYNC_INTERVAL", "soon")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty store path", func(c *Config) { c.Store.Path = "" }, "path"},
		{"non-http base url", func(c *Config) { c.Remote.BaseURL = "ftp://shop" }, "base_url"},
		{"zero timeout", func(c *Config) { c.Remote.Timeout = 0 }, "timeout"},
		{"unknown mode", func(c *Config) { c.Connectivity.Mode = "wifi" }, "mode"},
		{"negative rejections", func(c *Config) { c.Sync.MaxRejections = -1 }, "max_rejections"},
		{"negative sync interval", func(c *Config) { c.Sync.Interval = -time.Second }, "interval"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "format"},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_DisabledTimerAndHTTP(t *testing.T) {
	cfg := Default()
	cfg.Sync.Interval = 0
	cfg.HTTP.Addr = ""
	assert.NoError(t, Validate(cfg))
}
