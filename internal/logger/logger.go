// Package logger configures the process-wide structured logging sink.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gitlab.com/gitlab-org/correlated-http/internal/config"
)

// ConfigureLogger builds a slog logger according to the config and returns
// it together with a closer for the log file. An empty LogFile means logging
// to stderr. When the log file cannot be opened the error is reported on
// stderr, logging falls back to stderr and the returned closer is nil.
func ConfigureLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	level := parseLevel(cfg.LogLevel)

	if cfg.LogFile == "" {
		return newLogger(os.Stderr, cfg.LogFormat, level), nil, nil
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure log file: %v\n", err)
		return newLogger(os.Stderr, cfg.LogFormat, level), nil, err
	}

	return newLogger(logFile, cfg.LogFormat, level), logFile, nil
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
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
