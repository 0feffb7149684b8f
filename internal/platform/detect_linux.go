//go:build linux

package platform

import (
	"golang.org/x/sys/unix"
)

// Detect inspects uname to tell WSL from native Linux.
func Detect() OS {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return Linux
	}
	if isWSLRelease(unix.ByteSliceToString(u.Release[:])) {
		return WSL
	}
	return Linux
}
