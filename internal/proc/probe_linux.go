//go:build linux

package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProcFSProbe reads /proc directly.
type ProcFSProbe struct {
	Root string
}

// NewProbe prefers procfs and falls back to ps when /proc is not mounted.
func NewProbe() Probe {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		return PSProbe{}
	}
	return ProcFSProbe{Root: "/proc"}
}

func (p ProcFSProbe) path(pid int, name string) string {
	return filepath.Join(p.Root, fmt.Sprint(pid), name)
}

func (p ProcFSProbe) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	b, err := os.ReadFile(p.path(pid, "stat"))
	if err != nil {
		return false
	}
	state, ok := parseStatState(string(b))
	return ok && state != "Z" && state != "X"
}

func (p ProcFSProbe) CommandLine(pid int) (string, bool) {
	if !p.Alive(pid) {
		return "", false
	}
	b, err := os.ReadFile(p.path(pid, "cmdline"))
	if err != nil {
		return "", false
	}
	cmd := strings.TrimSpace(strings.ReplaceAll(string(b), "\x00", " "))
	return cmd, cmd != ""
}

// parseStatState extracts the state field that follows the parenthesised
// comm, which may itself contain spaces or parentheses.
func parseStatState(stat string) (string, bool) {
	i := strings.LastIndexByte(stat, ')')
	if i < 0 {
		return "", false
	}
	fields := strings.Fields(stat[i+1:])
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}
