// Package logging builds the shell's slog logger and hosts the fatal
// helper used for internal-consistency failures.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New creates a logger writing tinted console output to w at the
// given level.
func New(level string, w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      parseLevel(level),
		TimeFormat: time.TimeOnly,
		NoColor:    true,
	}))
}

// Discard returns a logger that drops everything. Used when no log
// file is configured: the terminal belongs to jobs, not to the
// shell's diagnostics.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(math.MaxInt),
	}))
}

// Open builds the configured logger. It returns the logger and a
// closer for the log file, which may be nil.
func Open(level, file string, debug bool) (*slog.Logger, io.Closer, error) {
	if debug {
		level = "debug"
	}
	if file == "" {
		if debug {
			return New(level, os.Stderr), nil, nil
		}
		return Discard(), nil, nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(level, f), f, nil
}

func parseLevel(level string) slog.Level {
	switch level {
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

// Fatalf prints a diagnostic and aborts the shell. Reserved for
// defects in job-table maintenance; continuing would corrupt job
// state.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "gush: fatal: "+format+"\n", args...)
	os.Exit(1)
}
