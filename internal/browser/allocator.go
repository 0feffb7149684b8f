package browser

import (
	"errors"
	"fmt"

	"github.com/treykane/oo/internal/apperr"
)

// ErrProfileUnavailable means every eligible profile is attached to a live
// SOCKS tunnel.
var ErrProfileUnavailable = errors.New("browser profile unavailable")

// Allocator hands out browser profiles not held by a live tunnel.
type Allocator struct {
	Profiles     *Manager
	MultiProfile bool
}

// Eligible lists every profile a tunnel may use: the pool in multi-profile
// mode, otherwise exactly the canonical profile.
func (a Allocator) Eligible() ([]Profile, error) {
	if a.MultiProfile {
		return a.Profiles.List()
	}
	p, err := a.Profiles.Canonical()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err,
			fmt.Sprintf("no browser profile named *.%s found in %s", a.Profiles.Suffix, a.Profiles.FirefoxDir))
	}
	return []Profile{p}, nil
}

// NextAvailable returns the first eligible profile whose path is not in
// inUse. inUse must come from the current live tunnel set.
func (a Allocator) NextAvailable(inUse []string) (Profile, error) {
	eligible, err := a.Eligible()
	if err != nil {
		return Profile{}, err
	}
	held := make(map[string]bool, len(inUse))
	for _, p := range inUse {
		held[p] = true
	}
	for _, p := range eligible {
		if !held[p.Path] {
			return p, nil
		}
	}
	msg := "Only one SOCKS tunnel can run at a time in single-profile mode. Set browser.multi_profile to true to run more."
	if a.MultiProfile {
		msg = "No browser profile available. Create one with `oo tunnels profile new` or clone one with `oo tunnels profile clone <parent>`."
	}
	return Profile{}, apperr.Wrap(apperr.KindConflict, ErrProfileUnavailable, msg)
}
