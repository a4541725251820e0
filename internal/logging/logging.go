// Package logging builds the slog loggers used across shaderls.
//
// Configuration comes from the environment:
//   - SHADERLS_LOG_LEVEL: debug, info, warn, error (default: info)
//   - SHADERLS_LOG_FORMAT: text, json (default: text)
//
// Output always goes to stderr; stdout belongs to the language server protocol.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	EnvLevel  = "SHADERLS_LOG_LEVEL"
	EnvFormat = "SHADERLS_LOG_FORMAT"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Config holds logging configuration
type Config struct {
	Level  slog.Level
	Format string    // "text" or "json"
	Output io.Writer // defaults to os.Stderr
	Source string    // component name attached to every record
}

// DefaultConfig returns info-level text logging to stderr for source.
func DefaultConfig(source string) Config {
	return Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
		Source: source,
	}
}

// ParseLevel maps a level name to a slog level. Unknown names report false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// LoadConfigFromEnv returns DefaultConfig(source) with SHADERLS_LOG_LEVEL
// and SHADERLS_LOG_FORMAT applied.
func LoadConfigFromEnv(source string) Config {
	cfg := DefaultConfig(source)

	if level, ok := ParseLevel(os.Getenv(EnvLevel)); ok {
		cfg.Level = level
	}
	if format := os.Getenv(EnvFormat); format != "" {
		cfg.Format = strings.ToLower(format)
	}

	return cfg
}

// New creates a logger from cfg.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler).With("source", cfg.Source)
}

// Default returns a logger configured from the environment.
func Default(source string) *slog.Logger {
	return New(LoadConfigFromEnv(source))
}

// Component derives a child logger tagged with a component name. A nil
// parent yields a logger that discards everything.
func Component(parent *slog.Logger, name string) *slog.Logger {
	if parent == nil {
		return Nop()
	}
	return parent.With("component", name)
}

// Nop returns a logger that discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
