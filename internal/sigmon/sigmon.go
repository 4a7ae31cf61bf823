// Package sigmon manages SIGCHLD delivery for the job-control engine.
//
// The shell has one logical control flow, so there is no lock around
// the job table. Instead, status reconciliation is confined to two
// points: the prompt-time drain and the foreground waiter, both of
// which run on the control flow. Block/Unblock bracket every table
// mutation; while blocked, notifications simply accumulate in the
// channel and the pending wait statuses stay queued in the kernel.
// One SIGCHLD may stand for several queued status changes, so Drain
// loops with WNOHANG until the kernel has nothing more to report.
package sigmon

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// HandlerFunc consumes one child-status change.
type HandlerFunc func(pid int, ws unix.WaitStatus)

// Monitor owns the SIGCHLD subscription and the suppression flag.
// Not safe for concurrent use; it belongs to the control flow.
type Monitor struct {
	ch      chan os.Signal
	blocked bool
}

// New creates a monitor. Start must be called before Drain sees any
// notifications.
func New() *Monitor {
	// Buffered generously: delivery while the channel is full is
	// dropped by the runtime, but Drain reaps from the kernel queue
	// unconditionally, so a dropped notification costs nothing.
	return &Monitor{ch: make(chan os.Signal, 128)}
}

// Start subscribes to SIGCHLD.
func (m *Monitor) Start() {
	signal.Notify(m.ch, unix.SIGCHLD)
}

// Stop unsubscribes.
func (m *Monitor) Stop() {
	signal.Stop(m.ch)
}

// Block suppresses asynchronous reconciliation. Pending statuses stay
// queued until Unblock and the next Drain, or until the foreground
// waiter collects them synchronously.
func (m *Monitor) Block() {
	m.blocked = true
}

// Unblock lifts suppression.
func (m *Monitor) Unblock() {
	m.blocked = false
}

// IsBlocked reports whether reconciliation is suppressed. Used by
// assertions guarding critical sections.
func (m *Monitor) IsBlocked() bool {
	return m.blocked
}

// Drain consumes all pending notifications and reaps every child with
// a queued status change, invoking fn for each. It never blocks: the
// channel read is non-blocking and the wait loop uses WNOHANG. Calling
// Drain while blocked is a no-op, preserving the deferral discipline.
func (m *Monitor) Drain(fn HandlerFunc) {
	if m.blocked {
		return
	}
notes:
	for {
		select {
		case <-m.ch:
		default:
			break notes
		}
	}
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		// ECHILD: nothing left to wait for. A spurious notification
		// for an already-reaped child also lands here.
		if err != nil || pid <= 0 {
			return
		}
		fn(pid, ws)
	}
}
