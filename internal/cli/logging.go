package cli

import (
	"io"
	"log/slog"

	"github.com/mera-platform/mera/internal/config"
)

// newLogger builds the process logger. --verbose forces debug level and
// --log-format overrides the configured format.
func newLogger(w io.Writer, opts *RootOptions, cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	format := cfg.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
