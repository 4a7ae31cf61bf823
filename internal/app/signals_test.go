//go:build linux

package app

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/dshills/gush/internal/parser"
	"github.com/dshills/gush/internal/spawn"
)

func launchGroup(t *testing.T, line string) int {
	t.Helper()
	ps, err := parser.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	pids, err := spawn.Launch(ps[0], spawn.Options{Foreground: false})
	if err != nil {
		t.Fatalf("Launch(%q): %v", line, err)
	}
	pgid := pids[0]
	t.Cleanup(func() {
		unix.Kill(-pgid, unix.SIGKILL)
		unix.Kill(-pgid, unix.SIGCONT)
		var ws unix.WaitStatus
		for {
			got, err := unix.Wait4(pgid, &ws, unix.WNOHANG, nil)
			if err == unix.EINTR {
				continue
			}
			if err != nil || got <= 0 {
				return
			}
		}
	})
	return pgid
}

func waitStatus(t *testing.T, pid int) unix.WaitStatus {
	t.Helper()
	var ws unix.WaitStatus
	for {
		got, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			t.Fatalf("wait4(%d): %v", pid, err)
		}
		if got == pid {
			return ws
		}
	}
}

func TestSpawnedChildKeepsDefaultSignalHandling(t *testing.T) {
	restore := shieldTerminalSignals()
	defer restore()

	// exec resets caught dispositions to their defaults, so ^Z and ^C
	// must still work inside a job even while the shell shields itself
	// from the same signals.
	pgid := launchGroup(t, "sleep 30")
	time.Sleep(100 * time.Millisecond)

	if err := unix.Kill(-pgid, unix.SIGTSTP); err != nil {
		t.Fatalf("kill -TSTP: %v", err)
	}
	ws := waitStatus(t, pgid)
	if !ws.Stopped() || ws.StopSignal() != unix.SIGTSTP {
		t.Fatalf("child did not stop on SIGTSTP: %v", ws)
	}

	if err := unix.Kill(-pgid, unix.SIGINT); err != nil {
		t.Fatalf("kill -INT: %v", err)
	}
	if err := unix.Kill(-pgid, unix.SIGCONT); err != nil {
		t.Fatalf("kill -CONT: %v", err)
	}
	ws = waitStatus(t, pgid)
	if !ws.Signaled() || ws.Signal() != unix.SIGINT {
		t.Fatalf("child did not die to SIGINT: %v", ws)
	}
}
