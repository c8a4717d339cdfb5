// Package logging configures the process-wide zerolog logger and hands out
// component loggers.
package logging

import (
	"fmt"
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

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// Setup installs the process-wide logger and returns it. Component loggers
// created afterwards with NewLogger inherit its output and level.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

// ParseLevel validates a level name from a flag or environment variable.
// The empty string means info.
func ParseLevel(s string) (LogLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	if _, ok := zerologLevels[LogLevel(name)]; !ok {
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
	return LogLevel(name), nil
}

// parseLevel maps a level to zerolog, treating anything unknown as info.
func parseLevel(level LogLevel) zerolog.Level {
	parsed, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zerologLevels[parsed]
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-request detail
//   - Page requests and their filters
//   - Cache hits, misses and pacing pauses
//   - Provenance lines appended
//
// Info: progress of a catalog run
//   - Catalog and entry start/finish
//   - Page accepted (rows, running total)
//   - Pagination finished (reason, pages, rows)
//   - Files written and the per-entry summary
//
// Warn: recoverable conditions
//   - Page fetch failed, page without rows
//   - Header mismatch between pages
//   - Row repaired to the header width
//   - Cache or history errors (the run continues)
//   - No data collected for an entry
//
// Error: an entry or the process cannot continue
//   - Entry failed or could not be persisted
//   - Invalid configuration or catalog
//
// Context Fields:
//   - component: package emitting the event
//   - run_id: process run identifier
//   - group, label: catalog entry
//   - filters: filtered query fields ("PrpTypeF=37,SurplusF=22")
//   - page, rows, total_rows: pagination progress
//   - reason: termination reason
//   - status_code, error_class: fetch failures
//   - duration, path: timings and written files
