// Package logging builds the zerolog loggers used by the responder.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// EnvLogLevel overrides the configured log level when set.
const EnvLogLevel = "RESPONDER_LOG_LEVEL"

// ParseLevel converts a level name into a zerolog level. The second result
// is false for an empty or unknown name.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// Level resolves the effective level from the configured name and the
// environment override.
func Level(configured string) zerolog.Level {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		return lvl
	}
	if lvl, ok := ParseLevel(configured); ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// New creates a JSON line logger writing to w.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
