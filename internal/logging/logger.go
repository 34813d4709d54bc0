package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig holds configuration for creating loggers.
type LoggerConfig struct {
	Format string // "json" or "text"
	// Level may be shared with a reloader to change verbosity at runtime.
	Level *slog.LevelVar
	// Output defaults to stderr. Stdout is reserved for the MCP transport.
	Output io.Writer
}

// NewLogger creates a slog.Logger with a "timestamp" time key.
func NewLogger(config LoggerConfig) *slog.Logger {
	level := config.Level
	if level == nil {
		level = new(slog.LevelVar)
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Key = "timestamp"
			}
			return a
		},
	}

	var handler slog.Handler
	if config.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level. Unknown values
// map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLevel returns a LevelVar set from a string level.
func NewLevel(level string) *slog.LevelVar {
	v := new(slog.LevelVar)
	v.Set(ParseLevel(level))
	return v
}
