// Package logging builds the process-wide structured logger, adapted from
// the corpus's pkg/logger: slog with a JSON or text handler, optional
// rotation to a file via lumberjack.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction.
type Config struct {
	Level      string // debug|info|warn|error
	Format     string // json|text
	Output     string // stdout|file
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig returns sane defaults for local development.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// New builds a *slog.Logger per cfg. It does not call slog.SetDefault —
// callers decide whether this logger becomes the process default.
func New(cfg Config) *slog.Logger {
	level := ParseLevel(cfg.Level)
	writer := writerFor(cfg)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler)
}

func writerFor(cfg Config) io.Writer {
	if strings.EqualFold(cfg.Output, "file") && cfg.Filename != "" {
		return &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   cfg.Compress,
		}
	}
	return os.Stdout
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

// ParseLevel maps a string to slog.Level, defaulting to Info on any
// unrecognized value.
func ParseLevel(level string) slog.Level {
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
