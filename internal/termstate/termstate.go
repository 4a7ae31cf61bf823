//go:build linux

// Package termstate arbitrates ownership of the controlling terminal
// between the shell and its jobs, and saves/restores terminal
// attributes across job stops. All operations degrade to no-ops when
// stdin is not a terminal, so the shell still runs under pipes.
package termstate

import (
	"log/slog"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Manager owns the shell's view of the controlling terminal.
type Manager struct {
	fd        int
	isTTY     bool
	shellPgid int
	shellTTY  unix.Termios
	sampled   bool
	log       *slog.Logger
}

// New creates a manager for the terminal on fd (normally stdin).
func New(fd int, log *slog.Logger) *Manager {
	return &Manager{
		fd:    fd,
		isTTY: term.IsTerminal(fd),
		log:   log,
	}
}

// Init samples the terminal attributes as the shell's baseline and
// records the shell's process group for later reclaims.
func (m *Manager) Init() error {
	if !m.isTTY {
		return nil
	}
	m.shellPgid = unix.Getpgrp()
	tio, err := unix.IoctlGetTermios(m.fd, unix.TCGETS)
	if err != nil {
		return err
	}
	m.shellTTY = *tio
	m.sampled = true
	return nil
}

// IsTerminal reports whether fd refers to a terminal.
func (m *Manager) IsTerminal() bool {
	return m.isTTY
}

// Fd returns the terminal file descriptor.
func (m *Manager) Fd() int {
	return m.fd
}

// Sample re-captures the current attributes as the shell's baseline.
// Called when a foreground job finishes without being killed, so a
// job's deliberate attribute changes (e.g. an editor restoring the
// screen) survive as the new default.
func (m *Manager) Sample() {
	if !m.isTTY {
		return
	}
	tio, err := unix.IoctlGetTermios(m.fd, unix.TCGETS)
	if err != nil {
		m.log.Warn("terminal sample failed", "error", err)
		return
	}
	m.shellTTY = *tio
	m.sampled = true
}

// Save captures the current attributes into t. Used when a foreground
// job is stopped so fg can later restore what the job had set up.
func (m *Manager) Save(t *unix.Termios) error {
	if !m.isTTY {
		return unix.ENOTTY
	}
	tio, err := unix.IoctlGetTermios(m.fd, unix.TCGETS)
	if err != nil {
		return err
	}
	*t = *tio
	return nil
}

// GiveTerminalTo makes pgid the foreground process group. If saved is
// non-nil those attributes are restored first, returning the job to
// the terminal state it had when it was stopped.
func (m *Manager) GiveTerminalTo(saved *unix.Termios, pgid int) {
	if !m.isTTY {
		return
	}
	if saved != nil {
		if err := unix.IoctlSetTermios(m.fd, unix.TCSETSW, saved); err != nil {
			m.log.Warn("terminal attribute restore failed", "error", err)
		}
	}
	if err := unix.IoctlSetPointerInt(m.fd, unix.TIOCSPGRP, pgid); err != nil {
		m.log.Warn("terminal handoff failed", "pgid", pgid, "error", err)
	}
}

// GiveBackToShell reclaims the terminal for the shell, restoring the
// sampled baseline attributes. The shell ignores SIGTTOU, so this is
// safe even when the shell is not the current foreground group.
func (m *Manager) GiveBackToShell() {
	if !m.isTTY {
		return
	}
	if m.sampled {
		if err := unix.IoctlSetTermios(m.fd, unix.TCSETSW, &m.shellTTY); err != nil {
			m.log.Warn("terminal attribute restore failed", "error", err)
		}
	}
	if err := unix.IoctlSetPointerInt(m.fd, unix.TIOCSPGRP, m.shellPgid); err != nil {
		m.log.Warn("terminal reclaim failed", "error", err)
	}
}

// CurrentOwner returns the terminal's current foreground process
// group, or -1 when fd is not a terminal.
func (m *Manager) CurrentOwner() int {
	if !m.isTTY {
		return -1
	}
	pgid, err := unix.IoctlGetInt(m.fd, unix.TIOCGPGRP)
	if err != nil {
		return -1
	}
	return pgid
}

// ShellPgid returns the process group the shell claims the terminal
// for.
func (m *Manager) ShellPgid() int {
	return m.shellPgid
}
