// Package logging configures the zerolog logger shared by every remotectl
// component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Components derive children from it with
// Component, so Init has to run before they are constructed.
var Logger zerolog.Logger

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level (trace, debug, info, warn, error, disabled).
	Level string

	// Format is json or console.
	Format string

	// Output defaults to stderr.
	Output io.Writer

	EnableCaller bool
}

// Init replaces Logger. Anything but the json format is rendered for humans.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	builder := zerolog.New(out).With().Timestamp()
	if cfg.EnableCaller {
		builder = builder.Caller()
	}
	Logger = builder.Logger()
}

// parseLevel accepts zerolog's level names plus "warning" and "off". Empty or
// unknown names mean info.
func parseLevel(level string) zerolog.Level {
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	default:
		parsed, err := zerolog.ParseLevel(name)
		if err != nil || parsed == zerolog.NoLevel {
			return zerolog.InfoLevel
		}
		return parsed
	}
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithHost tags logger with the remote host.
func WithHost(logger zerolog.Logger, host string) zerolog.Logger {
	return logger.With().Str("host", host).Logger()
}

// WithSession tags logger with a session id.
func WithSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session_id", sessionID).Logger()
}

func init() {
	Init(Config{Level: "info", Format: "console"})
}
