package tunnel

import (
	"errors"
	"fmt"
	"time"

	"github.com/treykane/oo/internal/apperr"
)

var (
	// ErrAlreadyRunning means a live tunnel with the same name exists.
	ErrAlreadyRunning = errors.New("tunnel already running")
	// ErrDependencyNotMet means a required binary or platform integration is
	// missing.
	ErrDependencyNotMet = errors.New("runtime dependency not met")
)

// ProcessFailedError reports a forwarding process that exited during the
// startup confirmation window.
type ProcessFailedError struct {
	Name    string
	After   time.Duration
	LogPath string
	Err     error
}

func (e *ProcessFailedError) Error() string {
	msg := fmt.Sprintf("autossh for %s failed after %.2gs", e.Name, e.After.Seconds())
	if e.LogPath != "" {
		msg += ". You can view the logs at " + e.LogPath
	}
	return msg
}

func (e *ProcessFailedError) Unwrap() error { return e.Err }

func alreadyRunning(name string) error {
	return apperr.Wrap(apperr.KindConflict,
		fmt.Errorf("%w: %s", ErrAlreadyRunning, name),
		fmt.Sprintf("Tunnel for profile %s already running!", name))
}

func processFailed(e *ProcessFailedError) error {
	return apperr.Wrap(apperr.KindProcess, e, e.Error())
}
