// Package logging builds the engine's structured logger: log/slog output
// rotated through lumberjack, following javi11-altmount's
// internal/slogutil pattern rather than the teacher's hand-rolled
// stdlib-log implementation.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/datallboy/gonzb/internal/config"
)

const redactedValue = "[REDACTED]"

// redactedKeys never reach a log line in cleartext (spec §7 testable
// property: AUTHINFO failures never leak credentials).
var redactedKeys = map[string]bool{
	"password": true,
	"username": true,
	"pass":     true,
	"user":     true,
}

// redactingHandler wraps an slog.Handler and blanks out attribute values
// whose key names credentials.
type redactingHandler struct {
	next slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		if redactedKeys[a.Key] {
			a.Value = slog.StringValue(redactedValue)
		}
		redacted.AddAttrs(a)
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	for i, a := range attrs {
		if redactedKeys[a.Key] {
			attrs[i].Value = slog.StringValue(redactedValue)
		}
	}
	return &redactingHandler{next: h.next.WithAttrs(attrs)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name)}
}

func parseLevel(level string) slog.Level {
	switch level {
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

// New builds a logger writing to stdout and to a rotating file described
// by cfg.Log, redacting credential-shaped attributes on both writers.
func New(cfg config.Log) *slog.Logger {
	level := parseLevel(cfg.Level)

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	var dest io.Writer = fileWriter
	if cfg.Path == "" {
		dest = os.Stdout
	} else {
		dest = io.MultiWriter(os.Stdout, fileWriter)
	}

	base := slog.NewTextHandler(dest, &slog.HandlerOptions{Level: level})
	return slog.New(&redactingHandler{next: base})
}
