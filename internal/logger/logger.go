package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Logger = slog.Default()

// Init installs the process-wide logger. LOG_LEVEL picks the level
// (debug, info, warn, error; info when unset), DEBUG=true or the debug flag
// force debug, and LOG_FORMAT=json switches to JSON lines.
func Init(debug bool) {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))
	if debug || os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}
	Logger = New(os.Stdout, level, os.Getenv("LOG_FORMAT"))
	slog.SetDefault(Logger)
}

// New builds a logger writing to w in text or json format.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
