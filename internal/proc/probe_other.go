//go:build !linux

package proc

// NewProbe returns the ps-backed probe.
func NewProbe() Probe { return PSProbe{} }
