// Package logging provides categorized structured logging for the engine,
// generalized from the teacher's config-driven categorized logger
// (internal/logging/logger.go in the codenerd source this module was
// adapted from) onto go.uber.org/zap instead of a hand-rolled per-category
// file writer — zap is already the corpus's structured-logging dependency
// of choice (used directly by the teacher's cmd/nerd test-context command).
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// Category names one of the engine's major subsystems, mirroring the
// teacher's Category type but scoped to build-orchestrator concerns.
type Category string

const (
	CategoryStore    Category = "store"
	CategoryRule     Category = "rule"
	CategoryMatch    Category = "match"
	CategoryGraph    Category = "graph"
	CategoryEngine   Category = "engine"
	CategoryAutodep  Category = "autodep"
	CategoryBackend  Category = "backend"
	CategoryReq      Category = "req"
	CategoryAudit    Category = "audit"
	CategoryConfig   Category = "config"
	CategoryQuery    Category = "query"
	CategoryJobEnv   Category = "jobenv"
	CategoryDaemon   Category = "daemon"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*Logger)
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails on a broken encoder config; fall
		// back to a no-op logger rather than panicking at import time.
		l = zap.NewNop()
	}
	base = l
}

// Configure swaps the base zap logger, e.g. to zap.NewDevelopment() under a
// debug flag, or to a file-backed core under LMAKE/logs. Loggers already
// returned by Get keep the base they were created with; only loggers
// obtained from later Get calls use l.
func Configure(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = make(map[Category]*Logger)
}

// ConfigureDebug switches to a human-readable development encoder writing
// to stderr, matching the teacher's "debug_mode" toggle semantics.
func ConfigureDebug(debug bool) {
	if !debug {
		return
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return
	}
	Configure(l)
}

// Logger is a category-scoped structured logger.
type Logger struct {
	z *zap.SugaredLogger
}

// Get returns the Logger for category, creating and caching it on first use.
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
	l := &Logger{z: base.Sugar().With("category", string(category))}
	loggers[category] = l
	return l
}

func (l *Logger) Debugf(format string, args ...any) { l.z.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.z.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.z.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.z.Errorf(format, args...) }

// With returns a derived Logger carrying additional structured fields, e.g.
// logging.Get(logging.CategoryEngine).With("req", reqID).Infof(...).
func (l *Logger) With(kv ...any) *Logger { return &Logger{z: l.z.With(kv...)} }

// Sync flushes any buffered log entries; call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// Fatalf logs at error level then exits 1. Reserved for ConfigError-class
// failures in cmd/lmaked, per spec §7 "ConfigError — unrecoverable".
func Fatalf(category Category, format string, args ...any) {
	Get(category).Errorf(format, args...)
	Sync()
	os.Exit(1)
}
