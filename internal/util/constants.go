// Package util provides common utility functions and constants used across oo.
// It imports no other internal/* package so anything can depend on it.
package util

import "time"

const (
	// DefaultStartupAttempts is how many times a freshly spawned forwarding
	// process is polled before it is considered up.
	DefaultStartupAttempts = 20

	// DefaultStartupInterval is the pause between two startup polls. Together
	// with DefaultStartupAttempts it bounds the startup wait to three seconds.
	DefaultStartupInterval = 150 * time.Millisecond

	// DefaultRefreshSeconds is the fallback refresh interval of the live
	// status dashboard.
	DefaultRefreshSeconds = 3

	// LoopbackHost is where every local forward and SOCKS listener binds.
	LoopbackHost = "127.0.0.1"
)
