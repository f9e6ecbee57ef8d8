// Package logging provides categorized logging for memora, built on zap.
// Each subsystem logs under its own category so a single noisy component
// can be silenced (or turned up) without touching the others. Until
// Initialize is called every category logs at warn level to stderr.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup, composition root
	CategoryMediator     Category = "mediator"     // Message routing, pending table
	CategoryPipeline     Category = "pipeline"     // Query orchestration stages
	CategoryNotes        Category = "notes"        // Note store and search
	CategoryProfile      Category = "profile"      // Profile store and relevance
	CategoryConversation Category = "conversation" // Conversation store
	CategoryExternal     Category = "external"     // External source retrieval
	CategoryWebsite      Category = "website"      // Website context
	CategoryStore        Category = "store"        // SQLite internals
	CategoryEmbedding    Category = "embedding"    // Embedding engine
	CategoryAPI          Category = "api"          // LLM API calls
)

// Options controls logger construction. Zero value gives production
// behavior: warn and above to stderr, every category enabled.
type Options struct {
	DebugMode  bool            // Enables debug level output
	Level      string          // "debug", "info", "warn", "error"
	Categories map[string]bool // Per-category enable; empty means all on
	JSONFormat bool            // Structured JSON instead of console encoding
}

// Logger is a category-scoped logger. All methods are printf-style to
// match call sites throughout the codebase.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	enabled  bool
}

var (
	mu      sync.RWMutex
	root    *zap.Logger
	opts    Options
	loggers = make(map[Category]*Logger)
)

func init() {
	// Pre-Initialize fallback: warnings and errors only.
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	root, _ = cfg.Build(zap.AddCallerSkip(1))
}

// Initialize configures the logging tree. Safe to call more than once;
// the last call wins and already-issued category loggers are rebuilt.
func Initialize(o Options) error {
	level := zapcore.WarnLevel
	if o.DebugMode {
		level = zapcore.DebugLevel
	}
	if o.Level != "" {
		if err := level.UnmarshalText([]byte(o.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	if o.JSONFormat {
		cfg.Encoding = "json"
	} else {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	root = logger
	opts = o
	loggers = make(map[Category]*Logger)
	return nil
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{
		category: category,
		sugar:    root.Named(string(category)).Sugar(),
		enabled:  categoryEnabled(category),
	}
	loggers[category] = l
	return l
}

// categoryEnabled reports whether a category passes the config filter.
// Empty filter means everything is enabled. Caller holds mu.
func categoryEnabled(category Category) bool {
	if len(opts.Categories) == 0 {
		return true
	}
	enabled, listed := opts.Categories[string(category)]
	if !listed {
		return true
	}
	return enabled
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.enabled {
		l.sugar.Debugf(format, args...)
	}
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.enabled {
		l.sugar.Infof(format, args...)
	}
}

// Warn logs at warn level. Warnings ignore the category filter.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs at error level. Errors ignore the category filter.
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying structured key/value context.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{
		category: l.category,
		sugar:    l.sugar.With(args...),
		enabled:  l.enabled,
	}
}
