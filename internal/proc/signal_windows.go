//go:build windows

package proc

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

func Terminate(pid int) error {
	if pid <= 0 {
		return nil
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}

func Detached() *syscall.SysProcAttr { return nil }
