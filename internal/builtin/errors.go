package builtin

import "errors"

// ErrExit signals that the user asked the shell to terminate. The
// read loop treats it as a clean shutdown, not a failure.
var ErrExit = errors.New("builtin: exit")
