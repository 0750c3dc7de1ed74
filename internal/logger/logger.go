// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	envLevel  = "VPSORDER_LOG_LEVEL"
	envFormat = "VPSORDER_LOG_FORMAT"
)

// Options overrides the environment. Empty fields fall back to
// VPSORDER_LOG_LEVEL (debug, info, warn, error; default warn) and
// VPSORDER_LOG_FORMAT (text, json; default text).
type Options struct {
	Level  string
	Format string
}

// Init builds a logger writing to w, installs it as the slog default and
// returns it. Interactive views own stdout, so callers pass stderr or a
// file.
func Init(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := opts.Level
	if level == "" {
		level = os.Getenv(envLevel)
	}
	format := opts.Format
	if format == "" {
		format = os.Getenv(envFormat)
	}

	l := slog.New(newHandler(w, parseLevel(level), format))
	slog.SetDefault(l)
	return l
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
