package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

// Field names that must never reach the log sink with their real value.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"password_salt": {},
	"secret":        {},
	"client_secret": {},
	"access_token":  {},
	"id_token":      {},
	"token":         {},
	"code":          {},
	"code_verifier": {},
}

var std = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init replaces the process logger. level is one of debug, info, warn or
// error; format is json or text.
func Init(level, format string) {
	Use(New(os.Stdout, level, format))
	Info("logger initialized", map[string]any{
		"level":  strings.ToLower(level),
		"format": strings.ToLower(format),
	})
}

// New builds a slog logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Use installs l as the process logger and as the slog default.
func Use(l *slog.Logger) {
	std = l
	slog.SetDefault(l)
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	return std
}

func Debug(msg string, fields map[string]any) {
	write(slog.LevelDebug, msg, fields)
}

func Info(msg string, fields map[string]any) {
	write(slog.LevelInfo, msg, fields)
}

func Warn(msg string, fields map[string]any) {
	write(slog.LevelWarn, msg, fields)
}

func Error(msg string, fields map[string]any) {
	write(slog.LevelError, msg, fields)
}

func Fatal(msg string, fields map[string]any) {
	write(slog.LevelError, msg, fields)
	os.Exit(1)
}

func write(level slog.Level, msg string, fields map[string]any) {
	ctx := context.Background()
	if !std.Enabled(ctx, level) {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
			attrs = append(attrs, slog.String(k, redacted))
			continue
		}
		attrs = append(attrs, slog.Any(k, fields[k]))
	}

	std.LogAttrs(ctx, level, msg, attrs...)
}

func parseLevel(level string) slog.Level {
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
