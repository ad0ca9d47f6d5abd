package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface used across the module.
// It matches slog's method shapes so any *slog.Logger adapts directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewJSONLogger creates a JSON slog Logger writing to w at the given level.
func NewJSONLogger(w io.Writer, level slog.Level) Logger {
	return NewSlogAdapter(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// NewTextLogger creates a text slog Logger writing to w at the given level.
func NewTextLogger(w io.Writer, level slog.Level) Logger {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// NewDefaultLogger creates a JSON info-level Logger on stdout.
func NewDefaultLogger() Logger {
	return NewJSONLogger(os.Stdout, slog.LevelInfo)
}

// WithSession returns a Logger that attaches session correlation attributes
// to every entry.
func WithSession(l Logger, sessionID string) Logger {
	if adapter, ok := l.(*SlogAdapter); ok {
		return &SlogAdapter{Logger: adapter.Logger.With("session_id", sessionID)}
	}
	return l
}

// LogModelCall records model call latency and outcome on l. Failed calls log
// at error level so provider outages stand out in aggregate logs.
func LogModelCall(l Logger, provider, model string, dur time.Duration, err error) {
	args := []any{"provider", provider, "model", model, "duration", dur}
	if err != nil {
		l.Error("model call failed", append(args, "error", err.Error())...)
		return
	}
	l.Debug("model call completed", args...)
}

// NoOpLogger discards all log messages. Useful for tests or when logging is
// disabled.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NoOpLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NoOpLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NoOpLogger) Error(string, ...any) {}
