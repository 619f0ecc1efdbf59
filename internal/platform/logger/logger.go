package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Level defaults to info and can be
// raised to debug via PRESENCE_LOG_LEVEL.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("PRESENCE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
