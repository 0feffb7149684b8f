// Package platform picks the desktop integration for the host OS.
package platform

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/util"
)

// ErrNotSupported is returned when the host OS has no client integration.
var ErrNotSupported = errors.New("system not supported")

// OS identifies the desktop environment the CLI runs in.
type OS string

const (
	Linux       OS = "linux"
	WSL         OS = "wsl"
	Darwin      OS = "darwin"
	Unsupported OS = "unsupported"
)

// ActionKind is the way a client connection is handed to the desktop.
type ActionKind int

const (
	// ActionNative runs a viewer binary directly.
	ActionNative ActionKind = iota
	// ActionOpenURL asks the OS to open a URL scheme.
	ActionOpenURL
	// ActionPrintURL only shows the URL to the user.
	ActionPrintURL
)

// Action is the resolved client launch for one forwarded desktop port.
type Action struct {
	Kind ActionKind
	Argv []string
	URL  string
}

// Binary is the executable the action needs, or "" when nothing is run.
func (a Action) Binary() string {
	if a.Kind == ActionPrintURL || len(a.Argv) == 0 {
		return ""
	}
	return a.Argv[0]
}

// DesktopClient maps (os, kind, port) to exactly one client action.
func DesktopClient(os OS, kind model.Kind, port int) (Action, error) {
	addr := fmt.Sprintf("%s:%d", util.LoopbackHost, port)
	switch kind {
	case model.KindRDP:
		url := "rdp://full%20address=s:" + addr
		switch os {
		case WSL:
			return Action{Kind: ActionNative, Argv: []string{"mstsc.exe", "/v:" + addr}, URL: url}, nil
		case Darwin:
			return Action{Kind: ActionOpenURL, Argv: []string{"open", url}, URL: url}, nil
		case Linux:
			return Action{Kind: ActionNative, Argv: []string{"xfreerdp", "/v:" + addr}, URL: url}, nil
		}
	case model.KindVNC:
		url := "vnc://" + addr
		switch os {
		case WSL:
			return Action{Kind: ActionPrintURL, URL: url}, nil
		case Darwin:
			return Action{Kind: ActionOpenURL, Argv: []string{"open", url}, URL: url}, nil
		case Linux:
			return Action{Kind: ActionNative, Argv: []string{"vncviewer", fmt.Sprintf("%s::%d", util.LoopbackHost, port)}, URL: url}, nil
		}
	default:
		return Action{}, fmt.Errorf("%s tunnels have no desktop client", kind)
	}
	return Action{}, fmt.Errorf("%w: no %s client for %s", ErrNotSupported, kind, os)
}

// BrowserCandidates lists where the browser binary is searched for, in order.
func BrowserCandidates(os OS) ([]string, error) {
	switch os {
	case WSL:
		return []string{
			"firefox.exe",
			"/mnt/c/Program Files/Mozilla Firefox/firefox.exe",
			"/mnt/c/Program Files (x86)/Mozilla Firefox/firefox.exe",
		}, nil
	case Darwin:
		return []string{"firefox", "/Applications/Firefox.app/Contents/MacOS/firefox"}, nil
	case Linux:
		return []string{"firefox"}, nil
	default:
		return nil, ErrNotSupported
	}
}

// LookPath resolves the first candidate that exists, either as an absolute
// path or through PATH.
func LookPath(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if p, err := exec.LookPath(c); err == nil {
			return p, true
		}
	}
	return "", false
}

// NativePath converts a local path to the form the browser binary expects.
// Under WSL that is the Windows path reported by wslpath.
func NativePath(os OS, path string) (string, error) {
	if os != WSL {
		return path, nil
	}
	out, err := exec.Command("wslpath", "-w", path).Output()
	if err != nil {
		return "", fmt.Errorf("wslpath %s: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// isWSLRelease reports whether a kernel release string belongs to WSL.
func isWSLRelease(release string) bool {
	return strings.Contains(strings.ToLower(release), "microsoft")
}
