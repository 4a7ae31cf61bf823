package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// killSignals is the allow-list of signal numbers the kill builtin
// accepts. Numbers 17, 19 and 23 are historic stop-signal numberings
// from different unices and all map to SIGSTOP here.
var killSignals = map[int]unix.Signal{
	1:  unix.SIGHUP,
	2:  unix.SIGINT,
	3:  unix.SIGQUIT,
	6:  unix.SIGABRT,
	9:  unix.SIGKILL,
	15: unix.SIGTERM,
	17: unix.SIGSTOP,
	19: unix.SIGSTOP,
	23: unix.SIGSTOP,
}

// killHandler sends a signal to a job's process group. Without an
// explicit signal it sends SIGKILL. Only allow-listed signal numbers
// are accepted; anything else is a usage error and nothing is sent.
type killHandler struct{}

func (*killHandler) Name() string { return "kill" }

func (*killHandler) Run(ctx *Context, args []string) error {
	const usage = "kill: usage: kill [-SIGNAL] <jid>"

	switch len(args) {
	case 0:
		fmt.Fprintln(ctx.Out, usage)
	case 1:
		j, ok := lookupJob(ctx, "kill", args)
		if !ok {
			return nil
		}
		if err := ctx.Signal.Signal(j.PGID(), unix.SIGKILL); err != nil {
			fmt.Fprintf(ctx.Out, "kill: %v\n", err)
			return nil
		}
		fmt.Fprintln(ctx.Out, "Sent kill signal")
	default:
		sig, ok := parseSignalArg(args[0])
		if !ok {
			fmt.Fprintln(ctx.Out, usage)
			return nil
		}
		j, ok := lookupJob(ctx, "kill", args[1:])
		if !ok {
			return nil
		}
		if err := ctx.Signal.Signal(j.PGID(), sig); err != nil {
			fmt.Fprintf(ctx.Out, "kill: %v\n", err)
			return nil
		}
		fmt.Fprintf(ctx.Out, "Sent kill signal %s\n", unix.SignalName(sig))
	}
	return nil
}

// parseSignalArg resolves a "-N" argument against the allow-list.
func parseSignalArg(arg string) (unix.Signal, bool) {
	num, ok := strings.CutPrefix(arg, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, false
	}
	sig, ok := killSignals[n]
	return sig, ok
}
