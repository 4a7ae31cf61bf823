package job

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// Suppression exposes whether asynchronous SIGCHLD handling is
// currently suppressed. The waiter asserts it before touching the
// table, because its correctness depends on being the only consumer
// of child-status changes while it runs.
type Suppression interface {
	IsBlocked() bool
}

// Waiter blocks the shell until a foreground job finishes or leaves
// the foreground state, reconciling statuses synchronously.
type Waiter struct {
	table *Table
	rec   *Reconciler
	term  Terminal
	mon   Suppression
	log   *slog.Logger
	fatal FatalFunc

	// wait collects the next child-status change. Overridable so
	// tests can script status sequences without real processes.
	wait func(ws *unix.WaitStatus) (int, error)
}

// NewWaiter creates a foreground waiter.
func NewWaiter(table *Table, rec *Reconciler, term Terminal, mon Suppression, log *slog.Logger, fatal FatalFunc) *Waiter {
	return &Waiter{
		table: table,
		rec:   rec,
		term:  term,
		mon:   mon,
		log:   log,
		fatal: fatal,
		wait: func(ws *unix.WaitStatus) (int, error) {
			return unix.Wait4(-1, ws, unix.WUNTRACED, nil)
		},
	}
}

// Wait blocks until j has no live processes or is no longer in the
// foreground (stopped, moved to background, or waiting on the
// terminal). On return, if the job ended without a signal death the
// current terminal attributes are sampled as the shell's new baseline;
// a fully reaped job is removed from the table immediately since the
// caller has already observed its completion.
func (w *Waiter) Wait(j *Job) {
	if !w.mon.IsBlocked() {
		w.fatal("foreground wait entered without SIGCHLD suppressed")
		return
	}

	for j.Status == Foreground && j.Alive > 0 {
		var ws unix.WaitStatus
		pid, err := w.wait(&ws)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			// With SIGCHLD suppressed nothing else can have reaped
			// these children; ECHILD here means the table lost track
			// of a process.
			w.fatal("wait for foreground job %d failed: %v", j.ID, err)
			return
		}
		w.rec.Handle(pid, ws)
	}

	id := j.ID
	if j.TermSignal == 0 {
		w.term.Sample()
	}
	if j.Alive < 1 {
		// Synchronous completion was observed by the caller; the
		// jobs listing never needs to report it. A signal death is
		// still announced once before the next prompt.
		w.table.Remove(j)
	}
	w.log.Debug("foreground wait finished", "job", id, "status", j.Status.String(), "alive", j.Alive)
}
