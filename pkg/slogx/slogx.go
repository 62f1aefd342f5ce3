package slogx

import (
	"log/slog"
	"os"
	"strings"
)

// Config controls handler construction. Zero values produce an info-level
// JSON logger with no source locations.
type Config struct {
	Service string
	Version string
	Env     string // "dev" adds source locations and defaults to text output
	Level   string // debug, info, warn, error
	Format  string // json or text; empty picks by Env
}

// New builds the process logger and installs it as the slog default, so
// stray slog calls from dependencies land in the same stream with the same
// service attributes.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.Env == "dev",
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" && cfg.Env == "dev" {
		// Text reads better in a terminal; everything else ships JSON.
		format = "text"
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", cfg.Service),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	slog.SetDefault(logger)
	return logger
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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
