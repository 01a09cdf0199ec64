package logging

import (
	"io"
	"log/slog"
	"os"

	pionlog "github.com/pion/logging"
)

// Level reads LOG_LEVEL. Production builds only show errors.
func Level() slog.Level {
	level := slog.LevelError

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error", "production", "prod":
			level = slog.LevelError
		}
	}
	return level
}

// Init installs the default slog logger writing to w. A nil w means stderr.
// The call screen owns the terminal, so callers pass a log file while it runs.
func Init(w io.Writer) slog.Level {
	if w == nil {
		w = os.Stderr
	}
	level := Level()

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return level
}

// PionLevel maps an slog level onto pion's logger levels. pion is one step
// quieter than our own output: debug stays debug, everything else drops to
// warnings and errors.
func PionLevel(level slog.Level) pionlog.LogLevel {
	switch {
	case level <= slog.LevelDebug:
		return pionlog.LogLevelDebug
	case level <= slog.LevelWarn:
		return pionlog.LogLevelWarn
	default:
		return pionlog.LogLevelError
	}
}
