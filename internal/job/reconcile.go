package job

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// Terminal is the slice of the terminal arbiter the engine needs:
// capturing attributes when a foreground job stops, and re-sampling
// the shell's baseline when a foreground job finishes cleanly.
type Terminal interface {
	// Save captures the current terminal attributes into t.
	Save(t *unix.Termios) error
	// Sample takes the current attributes as the shell's baseline.
	Sample()
}

// FatalFunc reports an unrecoverable internal-consistency failure and
// does not return.
type FatalFunc func(format string, args ...any)

// Reconciler applies one child-status change to the owning job. It is
// invoked both from the deferred SIGCHLD drain and from the foreground
// waiter's blocking loop; in either case the caller holds the table
// (delivery suppressed), so Handle never blocks and never removes
// table entries.
type Reconciler struct {
	table *Table
	term  Terminal
	log   *slog.Logger
	fatal FatalFunc
}

// NewReconciler creates a reconciler over the table. fatal is called
// for status changes of untracked processes, which indicate a defect
// in table maintenance.
func NewReconciler(table *Table, term Terminal, log *slog.Logger, fatal FatalFunc) *Reconciler {
	return &Reconciler{table: table, term: term, log: log, fatal: fatal}
}

// Handle records the wait status of one child process.
func (r *Reconciler) Handle(pid int, ws unix.WaitStatus) {
	j := r.table.ByPID(pid)
	if j == nil {
		if r.table.IsDisowned(pid) {
			if ws.Exited() || ws.Signaled() {
				r.table.ForgetDisowned(pid)
			}
			r.log.Debug("reaped disowned process", "pid", pid)
			return
		}
		r.fatal("received status for untracked process %d", pid)
		return
	}

	switch {
	case ws.Exited():
		j.Alive--
		if j.Alive < 1 {
			j.Status = Done
		}
		r.log.Debug("process exited", "pid", pid, "job", j.ID, "code", ws.ExitStatus(), "alive", j.Alive)

	case ws.Signaled():
		j.TermSignal = ws.Signal()
		r.table.NoteSignalDeath(ws.Signal())
		j.Alive--
		if j.Alive < 1 {
			j.Status = Terminated
		}
		r.log.Debug("process killed", "pid", pid, "job", j.ID, "signal", ws.Signal(), "alive", j.Alive)

	case ws.Stopped():
		sig := ws.StopSignal()
		if sig == unix.SIGTTOU || sig == unix.SIGTTIN {
			// The job wants the terminal; no attributes to capture
			// since it never legitimately owned it.
			j.Status = NeedsTerminal
		} else {
			if j.Status == Foreground {
				r.table.NoteStopped(j.ID)
				if err := r.term.Save(&j.SavedTTY); err == nil {
					j.TTYSaved = true
				}
			}
			j.Status = Stopped
		}
		r.log.Debug("process stopped", "pid", pid, "job", j.ID, "signal", sig)
	}
}
