// Package logging builds the zap loggers used across stratege.
// Each subsystem logs through a named category logger; categories can be
// switched off individually and the level can be changed at runtime.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup and config loading
	CategoryAPI        Category = "api"        // Backend HTTP calls
	CategoryScenario   Category = "scenario"   // Scenario registry
	CategorySession    Category = "session"    // Configuration session
	CategoryTranscript Category = "transcript" // Chat transcript
	CategoryWizard     Category = "wizard"     // Flow handlers
	CategoryStore      Category = "store"      // Local SQLite archive
	CategoryUI         Category = "ui"         // Terminal UI
	CategoryMock       Category = "mock"       // In-memory backend
)

// Options configures the root logger.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // empty = stderr
	Categories map[string]bool // missing categories are enabled
}

// Logger owns the root zap logger and hands out category loggers.
type Logger struct {
	root       *zap.Logger
	level      zap.AtomicLevel
	mu         sync.RWMutex
	categories map[string]bool
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(normalizeLevel(opts.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	var cfg zap.Config
	if opts.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = level
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
	}

	root, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &Logger{
		root:       root,
		level:      level,
		categories: copyCategories(opts.Categories),
	}, nil
}

// Wrap adapts an existing zap logger (tests, embedding).
func Wrap(root *zap.Logger) *Logger {
	if root == nil {
		root = zap.NewNop()
	}
	return &Logger{root: root, level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

// Get returns the logger for a category, or a no-op logger when the
// category is disabled.
func (l *Logger) Get(category Category) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	if !l.IsCategoryEnabled(category) {
		return zap.NewNop()
	}
	return l.root.Named(string(category))
}

// IsCategoryEnabled returns whether a specific category is enabled
func (l *Logger) IsCategoryEnabled(category Category) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.categories == nil {
		return true
	}
	enabled, exists := l.categories[string(category)]
	return !exists || enabled
}

// SetCategories replaces the category filter.
func (l *Logger) SetCategories(categories map[string]bool) {
	l.mu.Lock()
	l.categories = copyCategories(categories)
	l.mu.Unlock()
}

// SetLevel changes the level of every logger derived from l.
func (l *Logger) SetLevel(level string) error {
	return l.level.UnmarshalText([]byte(normalizeLevel(level)))
}

// Level returns the current level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	if l == nil || l.root == nil {
		return nil
	}
	return l.root.Sync()
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return "info"
	case "warning":
		return "warn"
	default:
		return strings.ToLower(strings.TrimSpace(level))
	}
}

func copyCategories(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	log   *zap.Logger
	op    string
	start time.Time
}

// StartTimer begins timing an operation
func StartTimer(log *zap.Logger, operation string) *Timer {
	return &Timer{log: log, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.log.Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.log.Warn("slow operation",
			zap.String("op", t.op),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold))
	} else {
		t.log.Debug("operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	}
	return elapsed
}

// NonFatal records a failure of a secondary operation (a refresh after a
// successful write, a catalog reload) that must not interrupt the caller.
// The error is logged at warn level and dropped.
func NonFatal(log *zap.Logger, op string, err error) {
	if err == nil || log == nil {
		return
	}
	log.Warn("non-fatal failure", zap.String("op", op), zap.Error(err))
}
