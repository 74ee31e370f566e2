// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Log is the global logger instance.
var Log zerolog.Logger

func init() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	SetOutput(os.Stdout, FormatConsole)
}

// Configure applies the configured level and format to the global logger.
func Configure(level, format string) {
	SetLevel(level)
	SetOutput(os.Stdout, format)
}

// SetLevel sets the global log level. Unknown levels fall back to info.
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// SetOutput points the global logger at w. The json format writes one JSON
// object per line; anything else is human-readable console output.
func SetOutput(w io.Writer, format string) {
	if format == FormatJSON {
		Log = zerolog.New(w).
			With().
			Timestamp().
			Str("service", "invoice-dashboard").
			Logger()
		return
	}

	Log = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Caller().
		Logger()
}
