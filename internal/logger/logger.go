package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"reminder-service/internal/config"
)

// New creates the service logger from the logging config
func New(cfg *config.LoggingConfig, service string) *slog.Logger {
	return newLogger(os.Stdout, cfg).With("service", service)
}

func newLogger(w io.Writer, cfg *config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
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
