package agent

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger from a level string
// ("debug", "info", "warn", "error"; anything else falls back to info).
// Grounded on the teacher's cmd-level setupLogger: a text handler on
// stderr, since vpnagentd's stdout is reserved for nothing in particular
// but stderr keeps logs separate from any future status output.
func NewLogger(level string) *slog.Logger {
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
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
