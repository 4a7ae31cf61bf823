// Package main is the entry point for the gush shell.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dshills/gush/internal/app"
)

// Version information (set via ldflags during build).
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	shell, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gush: failed to initialize: %v\n", err)
		return 1
	}
	defer shell.Shutdown()

	if err := shell.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "gush: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() app.Options {
	var opts app.Options
	var showVersion bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Debug, "debug", false, "Enable debug logging to stderr")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "gush - a job-control shell\n\n")
		fmt.Fprintf(os.Stderr, "Usage: gush [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nBuiltins: jobs, fg <jid>, bg <jid>, stop <jid>, kill [-SIGNAL] <jid>, history, exit\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("gush %s\n", version)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "gush: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts
}
