package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
	minLevel   slog.LevelVar
)

// initLogger initializes the global logger to write text records to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		minLevel.Set(slog.LevelInfo)
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &minLevel}))
	})
}

// SetLevel changes the minimum level that is written.
func SetLevel(l Level) {
	initLogger()
	minLevel.Set(toSlog(l))
}

// ParseLevel maps a config/env string ("debug", "info", ...) to a Level.
// Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

func logWithLevel(level Level, msg string, kv ...any) {
	initLogger()
	logger.Log(context.Background(), toSlog(level), msg, pairs(kv)...)
}

// pairs drops a dangling key and any non-string key so that malformed
// call sites never produce !BADKEY noise.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
