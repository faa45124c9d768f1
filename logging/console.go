//go:build !tinygo

package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewConsole creates a human readable logger for interactive use.
func NewConsole(w io.Writer, level zerolog.Level) zerolog.Logger {
	return New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
	}, level)
}
