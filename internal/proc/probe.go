// Package proc inspects and signals OS processes by PID.
//
// Every liveness decision in the tunnel layer goes through a Probe, so the
// platform-specific parsing stays here and never leaks into call sites.
package proc

import (
	"strings"
)

// Probe answers questions about a PID. A PID that no longer exists is the
// expected "not alive" case and never produces an error.
type Probe interface {
	Alive(pid int) bool
	CommandLine(pid int) (string, bool)
}

// Table is a Probe that can also terminate processes.
type Table interface {
	Probe
	Terminate(pid int) error
}

type system struct {
	Probe
}

func (system) Terminate(pid int) error { return Terminate(pid) }

// System returns the process table of the running OS.
func System() Table { return system{Probe: NewProbe()} }

// LastArg returns the final whitespace separated element of a command line.
func LastArg(cmdline string) string {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
