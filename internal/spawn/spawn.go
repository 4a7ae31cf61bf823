// Package spawn launches a pipeline as one process group with the
// stages' descriptors wired stdout-to-stdin. All inter-stage pipes are
// created before the first process starts and the parent's copies are
// closed once the last stage is running, so no child inherits a
// descriptor it does not need.
package spawn

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/dshills/gush/internal/parser"
)

// Terminal is the hook used to return terminal ownership to the shell
// when a foreground pipeline fails mid-construction.
type Terminal interface {
	GiveBackToShell()
}

// Options configures a launch.
type Options struct {
	// Foreground hands the terminal to the new process group as part
	// of process creation, so neither the shell nor the children ever
	// touch the terminal while unsure who owns it.
	Foreground bool

	// TTYFd is the controlling terminal descriptor in the shell's fd
	// space, used for the foreground handoff.
	TTYFd int

	// Env is the environment given to every stage.
	Env []string

	// Terminal receives the terminal back on partial failure of a
	// foreground pipeline. May be nil when Foreground is false.
	Terminal Terminal
}

// Launch starts one process per pipeline stage, all in a new process
// group led by the first stage. On success it returns the pids in
// pipeline order.
//
// On partial failure every pipe is closed, the terminal is returned to
// the shell, and the error is reported; the returned pids are the
// stages that did start. They are deliberately not killed — the caller
// disowns them and they are reaped silently when they exit.
func Launch(p *parser.Pipeline, opts Options) ([]int, error) {
	n := len(p.Commands)

	// Resolve every program up front; a missing command fails the
	// whole pipeline before a single process exists.
	paths := make([]string, n)
	for i, cmd := range p.Commands {
		path, err := exec.LookPath(cmd.Argv[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Argv[0], err)
		}
		paths[i] = path
	}

	// closers tracks every descriptor the parent must release:
	// pipe ends, redirection targets, /dev/null.
	var closers []*os.File
	closeAll := func() {
		for _, f := range closers {
			f.Close()
		}
	}

	type pipePair struct{ r, w *os.File }
	pipes := make([]pipePair, n-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("pipe: %w", err)
		}
		pipes[i] = pipePair{r: r, w: w}
		closers = append(closers, r, w)
	}

	stdin, err := openStdin(p, opts)
	if err != nil {
		closeAll()
		return nil, err
	}
	if stdin != os.Stdin {
		closers = append(closers, stdin)
	}

	stdout, err := openStdout(p)
	if err != nil {
		closeAll()
		return nil, err
	}
	if stdout != os.Stdout {
		closers = append(closers, stdout)
	}

	var pids []int
	pgid := 0
	for i, cmd := range p.Commands {
		files := make([]*os.File, 3)

		if i == 0 {
			files[0] = stdin
		} else {
			files[0] = pipes[i-1].r
		}
		if i == n-1 {
			files[1] = stdout
		} else {
			files[1] = pipes[i].w
		}
		if cmd.MergeStderr {
			files[2] = files[1]
		} else {
			files[2] = os.Stderr
		}

		sys := &syscall.SysProcAttr{
			Setpgid: true,
			Pgid:    pgid,
		}
		if opts.Foreground {
			// Foreground+Ctty makes the kernel-side handoff part of
			// process creation itself; Ctty is the parent-space fd.
			sys.Foreground = true
			sys.Ctty = opts.TTYFd
		}

		proc, err := os.StartProcess(paths[i], cmd.Argv, &os.ProcAttr{
			Env:   opts.Env,
			Files: files,
			Sys:   sys,
		})
		if err != nil {
			closeAll()
			if opts.Foreground && opts.Terminal != nil {
				opts.Terminal.GiveBackToShell()
			}
			return pids, fmt.Errorf("%s: %w", cmd.Argv[0], err)
		}

		pids = append(pids, proc.Pid)
		if pgid == 0 {
			pgid = proc.Pid
		}
		// Reaping happens through wait4 in the job engine, never
		// through this handle.
		proc.Release()
	}

	closeAll()
	return pids, nil
}

// openStdin returns the first stage's stdin: the input redirection if
// present, /dev/null for background pipelines (which must not read the
// terminal), otherwise the shell's stdin.
func openStdin(p *parser.Pipeline, opts Options) (*os.File, error) {
	if p.Input != "" {
		f, err := os.Open(p.Input)
		if err != nil {
			return nil, fmt.Errorf("input redirect: %w", err)
		}
		return f, nil
	}
	if !opts.Foreground {
		f, err := os.Open(os.DevNull)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", os.DevNull, err)
		}
		return f, nil
	}
	return os.Stdin, nil
}

// openStdout returns the last stage's stdout.
func openStdout(p *parser.Pipeline) (*os.File, error) {
	if p.Output == "" {
		return os.Stdout, nil
	}
	flags := os.O_CREATE | os.O_WRONLY
	if p.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(p.Output, flags, 0o666)
	if err != nil {
		return nil, fmt.Errorf("output redirect: %w", err)
	}
	return f, nil
}
