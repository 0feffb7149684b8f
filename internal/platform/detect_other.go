//go:build !linux

package platform

import "runtime"

func Detect() OS {
	if runtime.GOOS == "darwin" {
		return Darwin
	}
	return Unsupported
}
