// Package main is the entry point for the oo binary.
//
// oo starts and stops autossh tunnels through jump hosts: SOCKS proxies with a
// dedicated browser profile, and local forwards for RDP and VNC clients.
//
// Usage:
//
//	oo tunnels work            # SOCKS tunnel for profile "work"
//	oo tunnels rdp work db1    # RDP forward to host db1
//	oo tunnels status --watch  # live dashboard
//	oo ssh work db1            # interactive ssh through the jump host
package main

import (
	"fmt"
	"os"

	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Expected failures get a one-line message with paths redacted.
		// Anything else is a bug and keeps the full chain.
		if apperr.IsDomain(err) {
			fmt.Fprintln(os.Stderr, apperr.UserMessage(err, true))
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, apperr.DebugMessage(err))
		os.Exit(2)
	}
}
