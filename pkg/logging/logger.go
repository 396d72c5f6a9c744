// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// FromEnv builds a logger configuration from the LOG_LEVEL and LOG_PRETTY
// environment variables, falling back to defaults for anything unset.
func FromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = LogLevel(v)
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Pretty = strings.EqualFold(v, "true") || v == "1"
	}
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Per-document completion (reference, state, progress counters)
//   - Cache operations (hit/miss, key, TTL)
//   - Backoff waits between retry attempts
//
// Info: Normal operation events
//   - Batch start and summary (size, succeeded/failed/cancelled counts)
//   - Successful document submissions
//   - Scheduler registrations and fires
//   - Startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts after transient failures
//   - Cache errors (fallback to direct submission)
//   - Rate limiter saturation
//
// Error: Error conditions requiring attention
//   - Documents failed after retry budget exhausted
//   - Credential resolution failures
//   - Configuration errors
//
// Context Fields:
//   - reference: document reference (URL) being processed
//   - batch_size: number of documents in the batch
//   - attempt: retry attempt number
//   - state: outcome state (succeeded, failed, cancelled)
//   - status_code: HTTP status code from the processing endpoint
//   - duration: request or batch duration
//   - error_class: failure classification (network, client, server, decode)
//   - completed/total: progress counters
