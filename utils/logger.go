package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides leveled, printf-style logging on top of a structured slog handler.
type Logger struct {
	sl *slog.Logger
}

// NewLogger creates a Logger writing text records to stdout at info level.
func NewLogger() *Logger {
	return NewLoggerWithConfig("info", "text", os.Stdout)
}

// NewLoggerWithConfig builds a Logger for the given level ("debug", "info", "warn",
// "error") and format ("json" or "text").
func NewLoggerWithConfig(level, format string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{sl: slog.New(handler)}
}

// NewNopLogger discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return NewLoggerWithConfig("error", "text", io.Discard)
}

func parseLevel(level string) slog.Level {
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

// With returns a Logger that attaches the given key/value pairs to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sl: l.sl.With(args...)}
}

// Slog exposes the underlying structured logger.
func (l *Logger) Slog() *slog.Logger {
	return l.sl
}

func (l *Logger) Info(format string, args ...any) {
	l.sl.Info(sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.sl.Warn(sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.sl.Error(sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	l.sl.Debug(sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
