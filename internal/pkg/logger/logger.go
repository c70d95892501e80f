package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

type Config struct {
	Level       slog.Level
	LogToStderr bool
	Format      string // "json" or "text"
}

// SetupLogger creates a configured slog logger
func SetupLogger(cfg Config) (*slog.Logger, error) {
	var writer io.Writer = os.Stdout
	if cfg.LogToStderr {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: true, // Always add source file and line number
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), nil
}

// ParseLevel converts a string to slog.Level
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithUser returns a logger scoped to a user
func WithUser(logger *slog.Logger, userID string) *slog.Logger {
	return logger.With("user_id", userID)
}

// WithSession returns a logger scoped to a session (ID is truncated so full
// session identifiers never reach the logs)
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	return logger.With("session", sessionID)
}

// WithDuration annotates a logger with an operation duration
func WithDuration(logger *slog.Logger, duration time.Duration) *slog.Logger {
	return logger.With("duration_ms", duration.Milliseconds())
}
