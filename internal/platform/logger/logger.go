package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. JSON output keeps log lines
// machine-parseable; level comes from configuration so production can run
// at info while development runs at debug.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
