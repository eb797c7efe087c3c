// Package logger configures the process-wide slog default handler.
package logger

import (
	"log/slog"
	"os"
)

// Init installs the default slog handler: human-readable text in dev,
// structured JSON otherwise. Every component logs through slog.Default()
// rather than the standard log package.
func Init(isDev bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}

	if isDev {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
