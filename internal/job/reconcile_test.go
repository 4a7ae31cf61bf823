//go:build linux

package job

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"golang.org/x/sys/unix"
)

// Raw wait-status encodings as the Linux kernel reports them.
func exited(code int) unix.WaitStatus {
	return unix.WaitStatus(code << 8)
}

func signaled(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(sig)
}

func stopped(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(int(sig)<<8 | 0x7f)
}

// fakeTerminal records arbiter calls without touching a tty.
type fakeTerminal struct {
	saves   int
	samples int
	saveErr error
}

func (f *fakeTerminal) Save(*unix.Termios) error {
	f.saves++
	return f.saveErr
}

func (f *fakeTerminal) Sample() {
	f.samples++
}

func testReconciler(t *testing.T, tbl *Table) (*Reconciler, *fakeTerminal, *string) {
	t.Helper()
	term := &fakeTerminal{}
	var fatal string
	rec := NewReconciler(tbl, term, slog.New(slog.NewTextHandler(io.Discard, nil)), func(format string, args ...any) {
		fatal = fmt.Sprintf(format, args...)
	})
	return rec, term, &fatal
}

func TestReconcileExitToDone(t *testing.T) {
	tbl := NewTable()
	j, _ := tbl.Add(testPipeline("echo", "hi"), []int{100, 101})
	j.Status = Foreground
	rec, _, _ := testReconciler(t, tbl)

	rec.Handle(100, exited(0))
	if j.Alive != 1 {
		t.Errorf("Alive = %d, want 1", j.Alive)
	}
	if j.Status != Foreground {
		t.Errorf("Status = %v, want Foreground while a process lives", j.Status)
	}

	rec.Handle(101, exited(0))
	if j.Alive != 0 {
		t.Errorf("Alive = %d, want 0", j.Alive)
	}
	if j.Status != Done {
		t.Errorf("Status = %v, want Done", j.Status)
	}
	if tbl.Get(j.ID) == nil {
		t.Error("reconciler must not remove jobs from the table")
	}
}

func TestReconcileSignalToTerminated(t *testing.T) {
	tbl := NewTable()
	j, _ := tbl.Add(testPipeline("sleep", "100"), []int{100})
	j.Status = Background
	rec, _, _ := testReconciler(t, tbl)

	rec.Handle(100, signaled(unix.SIGKILL))
	if j.Status != Terminated {
		t.Errorf("Status = %v, want Terminated", j.Status)
	}
	if j.TermSignal != unix.SIGKILL {
		t.Errorf("TermSignal = %v, want SIGKILL", j.TermSignal)
	}
	if sig, ok := tbl.TakeSignalReport(); !ok || sig != unix.SIGKILL {
		t.Errorf("signal report = %v, %v", sig, ok)
	}
}

func TestReconcileForegroundStopCapturesTerminal(t *testing.T) {
	tbl := NewTable()
	j, _ := tbl.Add(testPipeline("vim"), []int{100})
	j.Status = Foreground
	rec, term, _ := testReconciler(t, tbl)

	rec.Handle(100, stopped(unix.SIGTSTP))
	if j.Status != Stopped {
		t.Errorf("Status = %v, want Stopped", j.Status)
	}
	if !j.TTYSaved || term.saves != 1 {
		t.Error("foreground stop must capture terminal attributes")
	}
	if id := tbl.TakeStoppedReport(); id != j.ID {
		t.Errorf("stopped report = %d, want %d", id, j.ID)
	}
}

func TestReconcileBackgroundStopNoCapture(t *testing.T) {
	tbl := NewTable()
	j, _ := tbl.Add(testPipeline("sleep", "100"), []int{100})
	j.Status = Background
	rec, term, _ := testReconciler(t, tbl)

	rec.Handle(100, stopped(unix.SIGSTOP))
	if j.Status != Stopped {
		t.Errorf("Status = %v, want Stopped", j.Status)
	}
	if j.TTYSaved || term.saves != 0 {
		t.Error("background stop must not capture terminal attributes")
	}
	if id := tbl.TakeStoppedReport(); id != 0 {
		t.Errorf("unexpected stopped report %d", id)
	}
}

func TestReconcileTerminalContention(t *testing.T) {
	tbl := NewTable()
	j, _ := tbl.Add(testPipeline("cat"), []int{100})
	j.Status = Background
	rec, term, _ := testReconciler(t, tbl)

	for _, sig := range []unix.Signal{unix.SIGTTOU, unix.SIGTTIN} {
		j.Status = Background
		rec.Handle(100, stopped(sig))
		if j.Status != NeedsTerminal {
			t.Errorf("Status after %v = %v, want NeedsTerminal", sig, j.Status)
		}
	}
	if term.saves != 0 {
		t.Error("terminal contention must not capture attributes")
	}
}

func TestReconcileAliveMonotonic(t *testing.T) {
	tbl := NewTable()
	j, _ := tbl.Add(testPipeline("a"), []int{100, 101, 102})
	j.Status = Background
	rec, _, _ := testReconciler(t, tbl)

	statuses := []unix.WaitStatus{exited(0), signaled(unix.SIGTERM), exited(1)}
	prev := j.Alive
	for i, ws := range statuses {
		rec.Handle(100+i, ws)
		if j.Alive > prev || j.Alive < 0 {
			t.Fatalf("Alive went from %d to %d", prev, j.Alive)
		}
		prev = j.Alive
	}
	if j.Alive != 0 {
		t.Errorf("Alive = %d, want 0", j.Alive)
	}
	// The last reaped process exited normally, so the job counts as
	// Done; the mid-pipeline signal is still recorded.
	if j.Status != Done {
		t.Errorf("Status = %v, want Done", j.Status)
	}
	if j.TermSignal != unix.SIGTERM {
		t.Errorf("TermSignal = %v, want SIGTERM", j.TermSignal)
	}
}

func TestReconcileUntrackedPIDIsFatal(t *testing.T) {
	tbl := NewTable()
	rec, _, fatal := testReconciler(t, tbl)

	rec.Handle(4242, exited(0))
	if *fatal == "" {
		t.Error("untracked pid must be reported as fatal")
	}
}

func TestReconcileDisownedPIDReapsSilently(t *testing.T) {
	tbl := NewTable()
	tbl.Disown([]int{4242})
	rec, _, fatal := testReconciler(t, tbl)

	rec.Handle(4242, stopped(unix.SIGSTOP))
	if *fatal != "" {
		t.Fatalf("disowned stop treated as fatal: %s", *fatal)
	}
	if !tbl.IsDisowned(4242) {
		t.Error("stop must not forget a disowned pid")
	}

	rec.Handle(4242, exited(0))
	if *fatal != "" {
		t.Fatalf("disowned exit treated as fatal: %s", *fatal)
	}
	if tbl.IsDisowned(4242) {
		t.Error("exit must forget a disowned pid")
	}
}
