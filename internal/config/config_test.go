package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().API.BaseURL, cfg.API.BaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stratege.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: http://backend:8080
  timeout: 5s
logging:
  level: debug
ui:
  theme: dark
`), 0644))

	t.Setenv("STRATEGE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.GetAPITimeout())
	assert.Equal(t, "warn", cfg.Logging.Level, "env wins over file")
	assert.Equal(t, "dark", cfg.UI.Theme)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("STRATEGE_API_URL", func(t *testing.T) {
		t.Setenv("STRATEGE_API_URL", "https://api.example.com")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		t.Setenv("STRATEGE_API_URL", "")
		t.Setenv("STRATEGE_THEME", "")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "http://localhost:5000", cfg.API.BaseURL)
		assert.Equal(t, "auto", cfg.UI.Theme)
	})
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stratege.yaml")
	cfg := DefaultConfig()
	cfg.UI.UserName = "camille"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "camille", loaded.UI.UserName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "localhost:5000" }},
		{"ftp scheme", func(c *Config) { c.API.BaseURL = "ftp://host" }},
		{"bad timeout", func(c *Config) { c.API.Timeout = "soon" }},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }},
		{"store without path", func(c *Config) { c.Store.DatabasePath = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetAPITimeout_Fallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Timeout = "nonsense"
	assert.Equal(t, 90*time.Second, cfg.GetAPITimeout())
}

func TestLoggingOptions(t *testing.T) {
	l := LoggingConfig{Level: "debug", Format: "console", File: "x.log", Categories: map[string]bool{"api": false}}
	opts := l.Options()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "console", opts.Format)
	assert.False(t, opts.Categories["api"])
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stratege.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	var level atomic.Value
	w, err := NewWatcher(path, nil, func(c *Config) { level.Store(c.Logging.Level) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.Save(path))

	require.Eventually(t, func() bool {
		v, _ := level.Load().(string)
		return v == "debug"
	}, 5*time.Second, 50*time.Millisecond)
}
