// Package app wires the shell's components together and runs the
// read-eval loop.
package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/gush/internal/builtin"
	"github.com/dshills/gush/internal/config"
	"github.com/dshills/gush/internal/history"
	"github.com/dshills/gush/internal/job"
	"github.com/dshills/gush/internal/logging"
	"github.com/dshills/gush/internal/sigmon"
	"github.com/dshills/gush/internal/termstate"
)

// Options configures the shell.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string

	// Debug forces debug-level logging to stderr when no log file is
	// configured.
	Debug bool

	// LogLevel overrides the configured log level.
	LogLevel string
}

// Shell is the interactive shell: one control flow reading commands,
// launching pipelines, and arbitrating the terminal between itself
// and its jobs.
type Shell struct {
	opts Options
	cfg  *config.Config
	log  *slog.Logger

	table    *job.Table
	term     *termstate.Manager
	mon      *sigmon.Monitor
	rec      *job.Reconciler
	waiter   *job.Waiter
	hist     *history.History
	builtins *builtin.Registry
	ctx      *builtin.Context

	in         *bufio.Reader
	out        io.Writer
	logClose   io.Closer
	sigRestore func()
}

// shieldTerminalSignals keeps keyboard-generated signals from stopping
// or killing the shell; they are meant for the foreground job, which
// receives them through terminal ownership. SIGTTOU in particular would
// stop the shell when it reclaims the terminal from a job's process
// group. The signals are caught and discarded, never ignored: an
// ignored disposition survives exec and would strip ^C and ^Z from
// every spawned job, while a caught one reverts to the default
// disposition in the child.
func shieldTerminalSignals() (restore func()) {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTSTP,
		syscall.SIGTTOU, syscall.SIGTTIN)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// New creates a shell, initializing components in dependency order.
func New(opts Options) (*Shell, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	log, logClose, err := logging.Open(cfg.Logging.Level, cfg.Logging.File, opts.Debug)
	if err != nil {
		return nil, err
	}

	if err := config.LoadEnv(config.EnvPath()); err != nil {
		log.Warn("env file not loaded", "error", err)
	}

	term := termstate.New(int(os.Stdin.Fd()), log)
	if err := term.Init(); err != nil {
		return nil, fmt.Errorf("terminal init: %w", err)
	}

	table := job.NewTable()
	mon := sigmon.New()
	rec := job.NewReconciler(table, term, log, logging.Fatalf)
	waiter := job.NewWaiter(table, rec, term, mon, log, logging.Fatalf)

	hist := history.New(cfg.History.MaxEntries, cfg.History.Path)
	if err := hist.Load(); err != nil {
		log.Warn("history not loaded", "error", err)
	}

	s := &Shell{
		opts:     opts,
		cfg:      cfg,
		log:      log,
		table:    table,
		term:     term,
		mon:      mon,
		rec:      rec,
		waiter:   waiter,
		hist:     hist,
		builtins: builtin.Default(),
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		logClose: logClose,
	}
	s.ctx = &builtin.Context{
		Table:   table,
		Term:    term,
		Waiter:  waiter,
		Signal:  builtin.KillSignaller{},
		History: hist,
		Out:     s.out,
	}

	s.sigRestore = shieldTerminalSignals()
	mon.Start()

	return s, nil
}

func loadConfig(opts Options) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	path := config.DefaultPath()
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

// Shutdown releases everything the shell tracks. Safe after Run has
// returned.
func (s *Shell) Shutdown() {
	s.mon.Stop()
	if s.sigRestore != nil {
		s.sigRestore()
	}
	s.table.Clear()
	if err := s.hist.Save(); err != nil {
		s.log.Warn("history not saved", "error", err)
	}
	if s.logClose != nil {
		s.logClose.Close()
	}
}
