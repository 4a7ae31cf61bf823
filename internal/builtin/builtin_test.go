package builtin

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/dshills/gush/internal/history"
	"github.com/dshills/gush/internal/job"
	"github.com/dshills/gush/internal/parser"
)

type fakeTerm struct {
	gaveTo   []int
	saved    []*unix.Termios
	reclaims int
}

func (f *fakeTerm) GiveTerminalTo(saved *unix.Termios, pgid int) {
	f.gaveTo = append(f.gaveTo, pgid)
	f.saved = append(f.saved, saved)
}

func (f *fakeTerm) GiveBackToShell() { f.reclaims++ }

type fakeWaiter struct {
	waited []*job.Job
	// finish simulates the job completing during the wait.
	finish bool
	table  *job.Table
}

func (f *fakeWaiter) Wait(j *job.Job) {
	f.waited = append(f.waited, j)
	if f.finish {
		j.Alive = 0
		j.Status = job.Done
		f.table.Remove(j)
	}
}

type sentSignal struct {
	pgid int
	sig  unix.Signal
}

type fakeSignaller struct {
	sent []sentSignal
	err  error
}

func (f *fakeSignaller) Signal(pgid int, sig unix.Signal) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentSignal{pgid, sig})
	return nil
}

type fixture struct {
	ctx    *Context
	table  *job.Table
	term   *fakeTerm
	waiter *fakeWaiter
	sig    *fakeSignaller
	out    *bytes.Buffer
}

func newFixture() *fixture {
	table := job.NewTable()
	term := &fakeTerm{}
	waiter := &fakeWaiter{table: table}
	sig := &fakeSignaller{}
	out := &bytes.Buffer{}
	return &fixture{
		ctx: &Context{
			Table:   table,
			Term:    term,
			Waiter:  waiter,
			Signal:  sig,
			History: history.New(10, ""),
			Out:     out,
		},
		table:  table,
		term:   term,
		waiter: waiter,
		sig:    sig,
		out:    out,
	}
}

func (f *fixture) addJob(t *testing.T, status job.Status, pids []int, argv ...string) *job.Job {
	t.Helper()
	j, err := f.table.Add(&parser.Pipeline{Commands: []*parser.Command{{Argv: argv}}}, pids)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	j.Status = status
	return j
}

func run(t *testing.T, f *fixture, name string, args ...string) {
	t.Helper()
	h := Default().Get(name)
	if h == nil {
		t.Fatalf("no handler for %s", name)
	}
	if err := h.Run(f.ctx, args); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
}

func TestRegistryRecognition(t *testing.T) {
	r := Default()
	for _, name := range []string{"jobs", "fg", "bg", "stop", "kill", "history", "exit"} {
		if !r.Has(name) {
			t.Errorf("builtin %s not registered", name)
		}
	}
	if r.Has("ls") {
		t.Error("ls must not be a builtin")
	}
}

func TestFgUnknownJob(t *testing.T) {
	f := newFixture()
	f.addJob(t, job.Background, []int{100}, "sleep", "5")

	run(t, f, "fg", "42")

	if got := f.out.String(); got != "fg 42: No such job\n" {
		t.Errorf("output = %q", got)
	}
	if len(f.term.gaveTo) != 0 {
		t.Error("no terminal handoff may happen for an unknown job")
	}
	if f.table.Len() != 1 {
		t.Error("table must be unchanged")
	}
}

func TestFgStoppedJob(t *testing.T) {
	f := newFixture()
	f.waiter.finish = true
	j := f.addJob(t, job.Stopped, []int{100, 101}, "cat")
	j.TTYSaved = true

	run(t, f, "fg", "1")

	out := f.out.String()
	if !strings.HasPrefix(out, "cat\n") {
		t.Errorf("fg must print the command line, got %q", out)
	}
	if len(f.term.gaveTo) != 1 || f.term.gaveTo[0] != 100 {
		t.Errorf("terminal handoff to %v, want [100]", f.term.gaveTo)
	}
	if f.term.saved[0] == nil {
		t.Error("captured attributes must be restored on fg")
	}
	if len(f.sig.sent) != 1 || f.sig.sent[0] != (sentSignal{100, unix.SIGCONT}) {
		t.Errorf("signals = %v, want SIGCONT to 100", f.sig.sent)
	}
	if len(f.waiter.waited) != 1 {
		t.Error("fg must wait synchronously")
	}
	if f.term.reclaims != 1 {
		t.Error("terminal must return to the shell after fg")
	}
}

func TestFgBackgroundJobNoContinue(t *testing.T) {
	f := newFixture()
	f.waiter.finish = true
	f.addJob(t, job.Background, []int{100}, "sleep", "5")

	run(t, f, "fg", "1")

	if len(f.sig.sent) != 0 {
		t.Errorf("running background job must not be sent SIGCONT, got %v", f.sig.sent)
	}
	if len(f.waiter.waited) != 1 {
		t.Error("fg must wait synchronously")
	}
}

func TestBgStoppedJob(t *testing.T) {
	f := newFixture()
	j := f.addJob(t, job.Stopped, []int{100}, "sleep", "5")

	run(t, f, "bg", "1")

	if j.Status != job.Background {
		t.Errorf("Status = %v, want Background", j.Status)
	}
	if len(f.sig.sent) != 1 || f.sig.sent[0].sig != unix.SIGCONT {
		t.Errorf("signals = %v, want SIGCONT", f.sig.sent)
	}
}

func TestBgAlreadyBackground(t *testing.T) {
	f := newFixture()
	f.addJob(t, job.Background, []int{100}, "sleep", "5")

	run(t, f, "bg", "1")

	if got := f.out.String(); got != "bg: 1 already in background\n" {
		t.Errorf("output = %q", got)
	}
	if len(f.sig.sent) != 0 {
		t.Errorf("no signal expected, got %v", f.sig.sent)
	}
}

func TestStopSendsSIGSTOP(t *testing.T) {
	f := newFixture()
	j := f.addJob(t, job.Background, []int{100}, "sleep", "5")

	run(t, f, "stop", "1")

	if len(f.sig.sent) != 1 || f.sig.sent[0] != (sentSignal{100, unix.SIGSTOP}) {
		t.Errorf("signals = %v, want SIGSTOP to 100", f.sig.sent)
	}
	// The status change arrives through reconciliation, not here.
	if j.Status != job.Background {
		t.Errorf("Status = %v, want Background until reconciled", j.Status)
	}
}

func TestJobsPurgesCompletedOnce(t *testing.T) {
	f := newFixture()
	f.addJob(t, job.Background, []int{100}, "sleep", "100")
	done := f.addJob(t, job.Done, []int{200}, "true")
	killed := f.addJob(t, job.Terminated, []int{300}, "sleep", "9")
	killed.TermSignal = unix.SIGKILL

	run(t, f, "jobs")

	out := f.out.String()
	if !strings.Contains(out, "[1]\tRunning\t\t(sleep 100)") {
		t.Errorf("running job missing from listing: %q", out)
	}
	if !strings.Contains(out, "[2]\tDone") {
		t.Errorf("done job missing from listing: %q", out)
	}
	if !strings.Contains(out, "Killed") {
		t.Errorf("killed job message missing: %q", out)
	}
	if f.table.Len() != 1 {
		t.Errorf("table len = %d, want 1 after purge", f.table.Len())
	}
	if f.table.Get(done.ID) != nil {
		t.Error("done job must be purged after listing")
	}

	f.out.Reset()
	run(t, f, "jobs")
	if strings.Contains(f.out.String(), "Done") || strings.Contains(f.out.String(), "Killed") {
		t.Errorf("completed jobs listed twice: %q", f.out.String())
	}
}

func TestHistoryListing(t *testing.T) {
	f := newFixture()
	f.ctx.History.Add("echo one")
	f.ctx.History.Add("echo two")

	run(t, f, "history")

	want := "1  echo one\n2  echo two\n"
	if got := f.out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestExitReturnsErrExit(t *testing.T) {
	f := newFixture()
	h := Default().Get("exit")
	if err := h.Run(f.ctx, nil); err != ErrExit {
		t.Errorf("err = %v, want ErrExit", err)
	}
}

func TestMissingArgumentUsage(t *testing.T) {
	for _, name := range []string{"fg", "bg", "stop"} {
		f := newFixture()
		run(t, f, name)
		if !strings.Contains(f.out.String(), "usage") {
			t.Errorf("%s with no args: output = %q, want usage", name, f.out.String())
		}
	}
}
