//go:build !windows

package proc

import (
	"errors"
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// Terminate sends SIGTERM to pid. A process that is already gone counts as
// terminated.
func Terminate(pid int) error {
	if pid <= 0 {
		return nil
	}
	err := unix.Kill(pid, unix.SIGTERM)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return fmt.Errorf("signal pid %d: %w", pid, err)
}

// Detached starts the child in its own session so it outlives the CLI and
// does not receive the terminal's SIGINT.
func Detached() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
