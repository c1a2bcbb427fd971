// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs a JSON logger with source locations as the slog default.
// Every record carries the service name and environment.
func Setup(level slog.Level, service, env string) {
	slog.SetDefault(New(os.Stdout, level, service, env))
}

// New builds a JSON logger writing to w.
func New(w io.Writer, level slog.Level, service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})

	l := slog.New(handler)
	if service != "" {
		l = l.With(slog.String("service", service))
	}
	if env != "" {
		l = l.With(slog.String("env", env))
	}
	return l
}

// ParseLevel converts a string log level to slog.Level.
// Unrecognized values default to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
