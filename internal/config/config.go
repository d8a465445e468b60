package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all stratege configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Backend marketing API
	API APIConfig `yaml:"api"`

	// Local transcript archive
	Store StoreConfig `yaml:"store"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// In-memory backend used by `stratege mock-server`
	Mock MockConfig `yaml:"mock"`
}

// APIConfig configures the backend HTTP client.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// StoreConfig configures the SQLite transcript archive.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// UIConfig configures the interactive chat.
type UIConfig struct {
	Theme          string `yaml:"theme"` // light, dark, auto
	UserName       string `yaml:"user_name"`
	RenderCacheMax int    `yaml:"render_cache_max"`
}

// MockConfig configures the in-memory backend.
type MockConfig struct {
	Addr string `yaml:"addr"`
	Seed bool   `yaml:"seed"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "stratege",
		Version: "0.4.0",

		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: "90s",
		},

		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(".stratege", "sessions.db"),
		},

		UI: UIConfig{
			Theme:          "auto",
			RenderCacheMax: 256,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   filepath.Join(".stratege", "logs", "stratege.log"),
		},

		Mock: MockConfig{
			Addr: "127.0.0.1:5000",
			Seed: true,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. A .env file next to the working directory is loaded first so its
// variables take part in the environment overrides.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// loadDotEnv loads .env without overriding variables already set.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STRATEGE_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("STRATEGE_API_TIMEOUT"); v != "" {
		c.API.Timeout = v
	}
	if v := os.Getenv("STRATEGE_DB"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("STRATEGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STRATEGE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("STRATEGE_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("STRATEGE_USER"); v != "" {
		c.UI.UserName = v
	}
}

// GetAPITimeout returns the request timeout as a duration.
func (c *Config) GetAPITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}
	return d
}

// ValidThemes lists the accepted UI themes.
var ValidThemes = []string{"light", "dark", "auto"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q: expected an absolute http(s) URL", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api.base_url scheme %q", u.Scheme)
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return fmt.Errorf("invalid api.timeout %q: %w", c.API.Timeout, err)
	}

	validTheme := false
	for _, t := range ValidThemes {
		if c.UI.Theme == t {
			validTheme = true
			break
		}
	}
	if !validTheme {
		return fmt.Errorf("invalid ui.theme: %s (valid: %v)", c.UI.Theme, ValidThemes)
	}

	if c.Store.Enabled && c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required when the store is enabled")
	}

	return c.Logging.Validate()
}
