package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dshills/gush/internal/builtin"
	"github.com/dshills/gush/internal/job"
	"github.com/dshills/gush/internal/logging"
	"github.com/dshills/gush/internal/parser"
	"github.com/dshills/gush/internal/spawn"
)

// Run executes the read-eval loop until end-of-input or the exit
// builtin. The returned error is nil for both.
func (s *Shell) Run() error {
	for {
		// SIGCHLD must never be suppressed while the shell solicits
		// input: a background job's exit would queue invisibly and
		// the prompt would never reflect it.
		if s.mon.IsBlocked() {
			logging.Fatalf("input loop reached with SIGCHLD suppressed")
		}
		s.mon.Drain(s.rec.Handle)
		s.reportPending()

		if s.term.IsTerminal() {
			// Reading input without owning the terminal would stop
			// the shell with SIGTTIN; every execution path must have
			// handed the terminal back before returning here.
			if owner := s.term.CurrentOwner(); owner != s.term.ShellPgid() {
				logging.Fatalf("input loop reached without terminal ownership (owner pgid %d)", owner)
			}
			fmt.Fprint(s.out, s.cfg.Prompt)
		}

		line, err := s.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		expanded, rewritten, err := s.hist.Expand(line)
		if err != nil {
			fmt.Fprintf(s.out, "gush: %v\n", err)
			continue
		}
		if rewritten {
			fmt.Fprintln(s.out, expanded)
		}

		pipelines, err := parser.Parse(expanded)
		if err != nil {
			fmt.Fprintf(s.out, "gush: %v\n", err)
			continue
		}
		if len(pipelines) == 0 {
			continue
		}
		s.hist.Add(expanded)

		for _, p := range pipelines {
			if err := s.runPipeline(p); err != nil {
				if errors.Is(err, builtin.ErrExit) {
					return nil
				}
				return err
			}
		}
	}
}

// runPipeline executes one pipeline: builtins in-place, everything
// else as a new job. SIGCHLD handling is suppressed for the whole
// sequence so the reconciler never sees the table mid-mutation.
func (s *Shell) runPipeline(p *parser.Pipeline) error {
	// Statuses that arrived while the user was typing must be applied
	// first; jobs and fg would otherwise act on stale state.
	s.mon.Drain(s.rec.Handle)
	s.mon.Block()
	defer s.mon.Unblock()

	first := p.Commands[0]
	if h := s.builtins.Get(first.Argv[0]); h != nil {
		return h.Run(s.ctx, first.Argv[1:])
	}

	pids, err := spawn.Launch(p, spawn.Options{
		Foreground: !p.Background,
		TTYFd:      s.term.Fd(),
		Env:        os.Environ(),
		Terminal:   s.term,
	})
	if err != nil {
		// Stages that did start are nobody's job now; remember them
		// so their eventual exits reap silently.
		s.table.Disown(pids)
		fmt.Fprintf(s.out, "gush: %v\n", err)
		return nil
	}

	j, err := s.table.Add(p, pids)
	if err != nil {
		logging.Fatalf("%v", err)
	}
	s.log.Debug("job started", "job", j.ID, "pgid", j.PGID(), "background", p.Background, "cmd", j.CommandLine())

	if p.Background {
		j.Status = job.Background
		fmt.Fprintf(s.out, "[%d] %d\n", j.ID, j.PGID())
		return nil
	}
	j.Status = job.Foreground
	s.waiter.Wait(j)
	s.term.GiveBackToShell()
	return nil
}

// reportPending announces, once each, a job stopped behind the
// shell's back and a signal-caused death, before the next prompt.
func (s *Shell) reportPending() {
	if id := s.table.TakeStoppedReport(); id != 0 {
		if j := s.table.Get(id); j != nil {
			fmt.Fprintf(s.out, "[%d]+\t%s\t\t(%s)\n", j.ID, j.Status, j.CommandLine())
		}
	}
	if sig, ok := s.table.TakeSignalReport(); ok {
		fmt.Fprintln(s.out, job.SignalMessage(sig))
	}
}
