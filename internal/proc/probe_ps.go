package proc

import (
	"os/exec"
	"strconv"
	"strings"
)

// PSProbe shells out to ps for a single PID and parses the output table.
type PSProbe struct {
	// Run executes ps with the given args. Nil means the real ps binary.
	Run func(args ...string) ([]byte, error)
}

func (p PSProbe) lookup(pid int) (stat, command string, ok bool) {
	if pid <= 0 {
		return "", "", false
	}
	run := p.Run
	if run == nil {
		run = func(args ...string) ([]byte, error) {
			return exec.Command("ps", args...).Output()
		}
	}
	// ps exits non-zero for an unknown PID but still prints the header.
	out, _ := run("-o", "pid,stat,command", "-p", strconv.Itoa(pid))
	return parsePS(string(out), pid)
}

func parsePS(out string, pid int) (stat, command string, ok bool) {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 2 {
		return "", "", false
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if n, err := strconv.Atoi(fields[0]); err != nil || n != pid {
			continue
		}
		return fields[1], strings.Join(fields[2:], " "), true
	}
	return "", "", false
}

func (p PSProbe) Alive(pid int) bool {
	stat, _, ok := p.lookup(pid)
	return ok && !strings.HasPrefix(stat, "Z")
}

func (p PSProbe) CommandLine(pid int) (string, bool) {
	stat, cmd, ok := p.lookup(pid)
	if !ok || strings.HasPrefix(stat, "Z") || cmd == "" {
		return "", false
	}
	return cmd, true
}
