package builtin

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/dshills/gush/internal/job"
)

// jobsHandler lists every tracked job and purges the ones whose
// completion has now been reported. This is the only place where
// asynchronously finished background jobs leave the table.
type jobsHandler struct{}

func (*jobsHandler) Name() string { return "jobs" }

func (*jobsHandler) Run(ctx *Context, _ []string) error {
	// Removal mutates the table, so iterate over a snapshot.
	listed := make([]*job.Job, len(ctx.Table.Jobs()))
	copy(listed, ctx.Table.Jobs())
	for _, j := range listed {
		j.Print(ctx.Out)
		if j.Status.Final() {
			ctx.Table.Remove(j)
		}
	}
	return nil
}

// fgHandler brings a job into the foreground: terminal handoff,
// continue if stopped, then a synchronous wait.
type fgHandler struct{}

func (*fgHandler) Name() string { return "fg" }

func (*fgHandler) Run(ctx *Context, args []string) error {
	j, ok := lookupJob(ctx, "fg", args)
	if !ok {
		return nil
	}
	fmt.Fprintln(ctx.Out, j.CommandLine())

	var saved *unix.Termios
	if j.TTYSaved {
		saved = &j.SavedTTY
	}
	pgid := j.PGID()
	ctx.Term.GiveTerminalTo(saved, pgid)

	if j.Status == job.Stopped || j.Status == job.NeedsTerminal {
		if err := ctx.Signal.Signal(pgid, unix.SIGCONT); err != nil {
			// The job never learned it should continue; waiting on
			// it would hang the shell.
			ctx.Term.GiveBackToShell()
			fmt.Fprintf(ctx.Out, "fg: %v\n", err)
			return nil
		}
	}
	j.Status = job.Foreground
	ctx.Waiter.Wait(j)
	ctx.Term.GiveBackToShell()
	return nil
}

// bgHandler resumes a stopped job in the background.
type bgHandler struct{}

func (*bgHandler) Name() string { return "bg" }

func (*bgHandler) Run(ctx *Context, args []string) error {
	j, ok := lookupJob(ctx, "bg", args)
	if !ok {
		return nil
	}
	if j.Status == job.Background {
		fmt.Fprintf(ctx.Out, "bg: %s already in background\n", args[0])
		return nil
	}
	if err := ctx.Signal.Signal(j.PGID(), unix.SIGCONT); err != nil {
		fmt.Fprintf(ctx.Out, "bg: %v\n", err)
		return nil
	}
	j.Status = job.Background
	return nil
}

// stopHandler sends SIGSTOP to a job's process group. The status
// change is observed later through reconciliation, not set here.
type stopHandler struct{}

func (*stopHandler) Name() string { return "stop" }

func (*stopHandler) Run(ctx *Context, args []string) error {
	j, ok := lookupJob(ctx, "stop", args)
	if !ok {
		return nil
	}
	if err := ctx.Signal.Signal(j.PGID(), unix.SIGSTOP); err != nil {
		fmt.Fprintf(ctx.Out, "stop: %v\n", err)
	}
	return nil
}

// historyHandler lists accepted command lines with 1-based indices.
type historyHandler struct{}

func (*historyHandler) Name() string { return "history" }

func (*historyHandler) Run(ctx *Context, _ []string) error {
	for i, line := range ctx.History.Entries() {
		fmt.Fprintf(ctx.Out, "%d  %s\n", i+1, line)
	}
	return nil
}

// exitHandler terminates the read loop.
type exitHandler struct{}

func (*exitHandler) Name() string { return "exit" }

func (*exitHandler) Run(_ *Context, _ []string) error {
	return ErrExit
}

// lookupJob resolves the single jid argument common to fg/bg/stop.
// User errors are printed and reported via ok=false.
func lookupJob(ctx *Context, name string, args []string) (*job.Job, bool) {
	if len(args) < 1 {
		fmt.Fprintf(ctx.Out, "%s: usage: %s <jid>\n", name, name)
		return nil, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(ctx.Out, "%s %s: No such job\n", name, args[0])
		return nil, false
	}
	j := ctx.Table.Get(id)
	if j == nil {
		fmt.Fprintf(ctx.Out, "%s %s: No such job\n", name, args[0])
		return nil, false
	}
	return j, true
}
