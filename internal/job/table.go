package job

import (
	"golang.org/x/sys/unix"

	"github.com/dshills/gush/internal/parser"
)

// MaxJobs bounds the job id pool. Ids are allocated densely by a
// first-free scan, which is fine at interactive job counts.
const MaxJobs = 256

// Table is the authoritative registry of live jobs. It preserves
// creation order for listing and maps ids to jobs for the builtins.
// Mutation happens only on the shell's control flow with SIGCHLD
// delivery suppressed; see the package comment.
type Table struct {
	jobs []*Job // creation order
	byID [MaxJobs + 1]*Job

	// Pending prompt-time reports: a job stopped behind the shell's
	// back, or a process died to a signal. Consumed before the next
	// prompt is printed.
	stoppedID   int
	deathSig    unix.Signal
	havePending bool

	// disowned holds pids spawned for a pipeline that failed mid
	// construction. No job tracks them; they are reaped silently.
	disowned map[int]bool
}

// NewTable creates an empty job table.
func NewTable() *Table {
	return &Table{disowned: make(map[int]bool)}
}

// Add registers a new job for a pipeline with its spawned pids. The
// smallest free id is assigned; ErrJobPoolExhausted is returned when
// none is available, which the caller treats as fatal.
func (t *Table) Add(p *parser.Pipeline, pids []int) (*Job, error) {
	j := &Job{
		Pipeline: p,
		PIDs:     pids,
		Alive:    len(pids),
	}
	for id := 1; id <= MaxJobs; id++ {
		if t.byID[id] == nil {
			j.ID = id
			t.byID[id] = j
			t.jobs = append(t.jobs, j)
			return j, nil
		}
	}
	return nil, ErrJobPoolExhausted
}

// Get returns the job with the given id, or nil.
func (t *Table) Get(id int) *Job {
	if id < 1 || id > MaxJobs {
		return nil
	}
	return t.byID[id]
}

// ByPID returns the job owning pid, or nil. Linear scan over tracked
// pids; the table is small by construction.
func (t *Table) ByPID(pid int) *Job {
	for _, j := range t.jobs {
		if j.Owns(pid) {
			return j
		}
	}
	return nil
}

// Jobs returns the live jobs in creation order. The returned slice is
// shared; callers must not mutate it.
func (t *Table) Jobs() []*Job {
	return t.jobs
}

// Len returns the number of live jobs.
func (t *Table) Len() int {
	return len(t.jobs)
}

// Remove deletes a job from the table, freeing its id for reuse. Must
// only be called once no process of the job can still report a status
// change, or after its terminal state has been shown to the user.
func (t *Table) Remove(j *Job) {
	t.byID[j.ID] = nil
	for i, cur := range t.jobs {
		if cur == j {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			break
		}
	}
	j.ID = -1
	j.Pipeline = nil
}

// Clear drops every job. Used at shell exit.
func (t *Table) Clear() {
	for _, j := range t.jobs {
		t.byID[j.ID] = nil
		j.ID = -1
	}
	t.jobs = nil
}

// Disown marks pids as abandoned by a failed pipeline launch.
func (t *Table) Disown(pids []int) {
	for _, pid := range pids {
		t.disowned[pid] = true
	}
}

// IsDisowned reports whether pid was abandoned.
func (t *Table) IsDisowned(pid int) bool {
	return t.disowned[pid]
}

// ForgetDisowned drops pid from the abandoned set once it has been
// reaped for good.
func (t *Table) ForgetDisowned(pid int) {
	delete(t.disowned, pid)
}

// NoteStopped records that a job was stopped while the shell was not
// synchronously waiting on it, for announcement before the next prompt.
func (t *Table) NoteStopped(id int) {
	t.stoppedID = id
}

// TakeStoppedReport returns and clears the pending stopped-job id,
// or 0 when there is none.
func (t *Table) TakeStoppedReport() int {
	id := t.stoppedID
	t.stoppedID = 0
	return id
}

// NoteSignalDeath records a signal-caused process death for
// announcement before the next prompt.
func (t *Table) NoteSignalDeath(sig unix.Signal) {
	t.deathSig = sig
	t.havePending = true
}

// TakeSignalReport returns and clears the pending death signal.
func (t *Table) TakeSignalReport() (unix.Signal, bool) {
	if !t.havePending {
		return 0, false
	}
	sig := t.deathSig
	t.deathSig, t.havePending = 0, false
	return sig, true
}
