package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger. LOG_LEVEL picks the level, falling back
// to fallback; LOG_FILE sends output to a file instead of stderr, which the
// classroom shell needs because it owns the terminal. The returned func
// closes the file.
func Init(fallback slog.Level) (func() error, error) {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), fallback)

	var out io.Writer = os.Stderr
	closer := func() error { return nil }
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closer = f.Close
	}

	logger := slog.New(
		slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return closer, nil
}

func ParseLevel(l string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	default:
		return fallback
	}
}
