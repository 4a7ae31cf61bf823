// Package builtin implements the shell's job-control commands. A
// pipeline whose first command names a registered builtin is executed
// in-place by its handler and never becomes a job.
package builtin

import (
	"io"

	"golang.org/x/sys/unix"

	"github.com/dshills/gush/internal/history"
	"github.com/dshills/gush/internal/job"
)

// Terminal is the slice of the terminal arbiter the builtins need.
type Terminal interface {
	// GiveTerminalTo hands the terminal to pgid, restoring saved
	// attributes first when non-nil.
	GiveTerminalTo(saved *unix.Termios, pgid int)
	// GiveBackToShell reclaims the terminal for the shell.
	GiveBackToShell()
}

// Waiter runs the synchronous foreground wait for a job.
type Waiter interface {
	Wait(j *job.Job)
}

// Signaller delivers a signal to a whole process group.
type Signaller interface {
	Signal(pgid int, sig unix.Signal) error
}

// KillSignaller is the production Signaller, delivering via kill(2)
// on the negated pgid.
type KillSignaller struct{}

// Signal sends sig to every process in pgid's group.
func (KillSignaller) Signal(pgid int, sig unix.Signal) error {
	return unix.Kill(-pgid, sig)
}

// Context carries the collaborators a handler operates on. User-level
// errors are written to Out and not returned; a returned error aborts
// the shell's read loop (only ErrExit does this in practice).
type Context struct {
	Table   *job.Table
	Term    Terminal
	Waiter  Waiter
	Signal  Signaller
	History *history.History
	Out     io.Writer
}

// Handler executes one builtin.
type Handler interface {
	// Name is the command word that selects this handler.
	Name() string
	// Run executes the builtin with the arguments after the name.
	Run(ctx *Context, args []string) error
}

// Registry maps command names to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its name.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Get returns the handler for name, or nil.
func (r *Registry) Get(name string) Handler {
	return r.handlers[name]
}

// Has reports whether name is a builtin.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Default returns a registry with every builtin registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register(&jobsHandler{})
	r.Register(&fgHandler{})
	r.Register(&bgHandler{})
	r.Register(&stopHandler{})
	r.Register(&killHandler{})
	r.Register(&historyHandler{})
	r.Register(&exitHandler{})
	return r
}
