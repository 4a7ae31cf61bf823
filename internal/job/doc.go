// Package job implements the shell's job-control engine: the job table,
// the child-status reconciler, and the foreground waiter.
//
// The table is owned by the shell's single control flow. SIGCHLD-driven
// reconciliation is serialized with that flow by the monitor's
// block/unblock discipline (see internal/sigmon); the package therefore
// uses no locking of its own. Jobs whose processes have all been reaped
// stay addressable until synchronous code removes them: the waiter
// removes a foreground job it observed finish, and the jobs builtin
// removes background jobs after reporting their completion.
package job
