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
	// LevelTrace logs every SQL statement issued by the store.
	LevelTrace LogLevel = "trace"

	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Valid reports whether l names a known level (case-insensitive).
func (l LogLevel) Valid() bool {
	switch strings.ToLower(string(l)) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

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

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "trace":
		return zerolog.TraceLevel
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
// Trace: SQL statements issued through gorm
//
// Debug: Detailed information for debugging
//   - Individual HTTP requests and reference resolutions
//   - Per-record not-found detection
//   - Transaction begin/commit per chunk
//
// Info: Normal operation events
//   - Run start (count, chunk size, storage mode)
//   - Chunk fetched / chunk persisted
//   - Run summary and elapsed time
//
// Warn: Conditions that do not stop the run
//   - Slow queries
//   - Unexpected 4xx responses on reference URLs before they fail the record
//
// Error: Conditions that abort the run
//   - Fetch failures (network, decode, server)
//   - Transaction failures
//   - Configuration errors
//
// Context Fields:
//   - id: entity id being fetched
//   - chunk: chunk index (0-based)
//   - ids: ids in the chunk
//   - records / rows: record and row counts for a chunk
//   - duration: elapsed time of the step
//   - error_class: client, server, network, decode
