package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"digital-twin-search/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	InitWithWriter(cfg, os.Stdout)
}

// InitWithWriter is InitLogger with an explicit destination.
func InitWithWriter(cfg *config.Config, w io.Writer) {
	level := ParseLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Only add source in debug mode
	}

	handler := slog.NewJSONHandler(w, opts)
	Logger = slog.New(handler).With("service", cfg.ServiceName)

	Logger.Debug("Structured logging initialized", "level", level.String())
}

// ParseLevel maps LOG_LEVEL values to slog levels; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a logger tagged with a component name. It falls back to the
// default slog logger before InitLogger runs.
func With(component string) *slog.Logger {
	if Logger == nil {
		return slog.Default().With("component", component)
	}
	return Logger.With("component", component)
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
