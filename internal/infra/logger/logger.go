package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"maestro/internal/infra/config"
)

// New creates a configured *slog.Logger. When cfg.RingSize > 0 the returned
// Ring captures the most recent records for the debug endpoint; otherwise it
// is nil. The returned closer function should be deferred to flush/close
// file handles.
func New(cfg config.LoggerConfig) (*slog.Logger, *Ring, func() error, error) {
	writer, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open log output: %w", err)
	}

	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	var ring *Ring
	if cfg.RingSize > 0 {
		ring = NewRing(cfg.RingSize)
		handler = NewRingHandler(handler, ring)
	}

	return slog.New(handler), ring, closer, nil
}

// Discard returns a no-op logger for components created without one.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// parseLevel converts a string level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openOutput returns an io.Writer for the specified output target.
func openOutput(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
