package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output so the audit
// pipeline and log shippers stay aligned.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
