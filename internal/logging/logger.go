package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the process logger. Dev builds get a colorized human handler,
// release builds (version set via ldflags) get JSON.
func New(level slog.Level, appEnv, version, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", appEnv,
	)
}
