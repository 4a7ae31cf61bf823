package job

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/dshills/gush/internal/parser"
)

// Status is the lifecycle state of a job.
type Status int

const (
	// Foreground means the job owns the terminal and the shell is
	// blocked on it. At most one job is in this state at a time.
	Foreground Status = iota
	// Background means the job runs detached from the terminal.
	Background
	// Stopped means the job was stopped by a stop-style signal.
	Stopped
	// NeedsTerminal means a background job stopped because it
	// attempted terminal I/O without owning the terminal.
	NeedsTerminal
	// Terminated means the job was killed by a signal.
	Terminated
	// Done means every process in the job exited normally.
	Done
)

// String returns the user-facing status label.
func (s Status) String() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Running"
	case Stopped:
		return "Stopped"
	case NeedsTerminal:
		return "Stopped (tty)"
	case Terminated:
		return "Terminated"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Final reports whether the status is terminal (Done or Terminated).
func (s Status) Final() bool {
	return s == Done || s == Terminated
}

// Job tracks one pipeline's set of processes.
type Job struct {
	// ID is the small dense identifier the user addresses the job by.
	ID int

	// Pipeline is the command structure this job executes. Owned by
	// the job; released when the job is removed from the table.
	Pipeline *parser.Pipeline

	// Status is the current lifecycle state.
	Status Status

	// PIDs holds one process id per pipeline stage, in pipeline
	// order. The first entry is the process-group leader.
	PIDs []int

	// Alive counts processes in PIDs not yet known to have exited.
	Alive int

	// TermSignal is the signal that killed the job, or 0 if none.
	TermSignal unix.Signal

	// SavedTTY holds the terminal attributes captured when the job
	// was stopped while in the foreground. Valid only if TTYSaved.
	SavedTTY unix.Termios
	TTYSaved bool
}

// PGID returns the job's process-group id (the first stage's pid).
func (j *Job) PGID() int {
	return j.PIDs[0]
}

// Owns reports whether pid belongs to this job.
func (j *Job) Owns(pid int) bool {
	for _, p := range j.PIDs {
		if p == pid {
			return true
		}
	}
	return false
}

// CommandLine reconstructs the job's command line for display.
func (j *Job) CommandLine() string {
	return j.Pipeline.String()
}

// Print writes the job's listing line: terminated jobs print their
// signal message, done jobs a short completion line, everything else
// the id, status label and command line.
func (j *Job) Print(w io.Writer) {
	switch {
	case j.Status == Terminated:
		fmt.Fprintln(w, SignalMessage(j.TermSignal))
	case j.Status == Done:
		fmt.Fprintf(w, "[%d]\tDone\n", j.ID)
	default:
		fmt.Fprintf(w, "[%d]\t%s\t\t(%s)\n", j.ID, j.Status, j.CommandLine())
	}
}

// SignalMessage returns the message printed for a signal death.
func SignalMessage(sig unix.Signal) string {
	switch sig {
	case unix.SIGFPE:
		return "Floating point exception"
	case unix.SIGSEGV:
		return "Segmentation fault"
	case unix.SIGABRT:
		return "Aborted"
	case unix.SIGKILL:
		return "Killed"
	default:
		return "Terminated"
	}
}
