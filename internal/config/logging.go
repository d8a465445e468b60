package config

import (
	"fmt"

	"stratege/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, console
	File       string          `yaml:"file"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// Validate checks level and format.
func (l LoggingConfig) Validate() error {
	switch l.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", l.Level)
	}
	switch l.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging.format: %s", l.Format)
	}
	return nil
}

// Options converts the section into logger options.
func (l LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		Categories: l.Categories,
	}
}
