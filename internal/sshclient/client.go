// Package sshclient builds and launches ssh and autossh processes.
//
// This package does NOT implement the SSH protocol. It shells out to the
// system binaries so the user's full SSH configuration (keys, agents,
// ProxyJump chains) applies without reimplementing any of it.
//
// There are two kinds of process:
//
//   - Forwarding processes: Spawn() starts autossh detached from the CLI in
//     its own session. The returned Process exposes the PID and a channel
//     that closes when the process exits, so the caller can confirm startup
//     and then leave the process running after oo exits.
//
//   - Interactive sessions: RunInteractive() allocates a PTY and connects the
//     user's terminal to ssh through a profile's jump host.
//
// All arguments are passed as argv, never through a shell.
package sshclient

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/creack/pty"
	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/proc"
)

// Options are the settings shared by every forwarding command.
type Options struct {
	Autossh             string
	SSH                 string
	SSHConfig           string
	ServerAliveInterval int
	ServerAliveCountMax int
}

// Client builds command lines from Options. It is stateless.
type Client struct {
	opts Options
}

// New creates a client, filling in binary names when unset.
func New(opts Options) *Client {
	if opts.Autossh == "" {
		opts.Autossh = "autossh"
	}
	if opts.SSH == "" {
		opts.SSH = "ssh"
	}
	if opts.ServerAliveInterval <= 0 {
		opts.ServerAliveInterval = 3
	}
	if opts.ServerAliveCountMax <= 0 {
		opts.ServerAliveCountMax = 30
	}
	return &Client{opts: opts}
}

// Autossh is the forwarding binary that must be resolvable before a start.
func (c *Client) Autossh() string { return c.opts.Autossh }

// SSHBinary is the binary used for interactive sessions.
func (c *Client) SSHBinary() string { return c.opts.SSH }

func (c *Client) trailer(jumpHost string) []string {
	args := []string{
		"-o", "ServerAliveInterval=" + strconv.Itoa(c.opts.ServerAliveInterval),
		"-o", "ServerAliveCountMax=" + strconv.Itoa(c.opts.ServerAliveCountMax),
	}
	if c.opts.SSHConfig != "" {
		args = append(args, "-F", c.opts.SSHConfig)
	}
	// The jump host stays last: it is recovered from the process table when a
	// record lost it.
	return append(args, jumpHost)
}

// SocksArgv builds the dynamic forward command:
//
//	autossh -N -M 0 -D <port> -o ServerAliveInterval=3 -o ServerAliveCountMax=30 [-F cfg] <jump>
func (c *Client) SocksArgv(port int, jumpHost string) []string {
	argv := []string{c.opts.Autossh, "-N", "-M", "0", "-D", strconv.Itoa(port)}
	return append(argv, c.trailer(jumpHost)...)
}

// ForwardArgv builds one -L per forward in a single autossh process.
func (c *Client) ForwardArgv(forwards []model.Forward, jumpHost string) []string {
	argv := []string{c.opts.Autossh, "-N", "-M", "0"}
	for _, f := range forwards {
		argv = append(argv, "-L", f.Spec())
	}
	return append(argv, c.trailer(jumpHost)...)
}

// SSHArgv builds an interactive ssh command. With an empty target it
// connects to the jump host itself, otherwise it hops through it.
func (c *Client) SSHArgv(jumpHost, target string, port int) []string {
	argv := []string{c.opts.SSH}
	if c.opts.SSHConfig != "" {
		argv = append(argv, "-F", c.opts.SSHConfig)
	}
	if target == "" {
		return append(argv, jumpHost)
	}
	if port <= 0 {
		port = 22
	}
	return append(argv, "-J", jumpHost, "-p", strconv.Itoa(port), target)
}

// SplitHostPort accepts "address" or "address:port".
func SplitHostPort(s string) (string, int, error) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, 22, nil
	}
	port, err := strconv.Atoi(s[i+1:])
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", s)
	}
	return s[:i], port, nil
}

// RunInteractive runs argv in a pseudo-terminal wired to the user's terminal
// and blocks until it exits.
//
// When stdin is a terminal it is switched to raw mode for the duration of
// the session and restored afterwards:
//
//  1. keystrokes are forwarded unbuffered and are echoed only by the remote
//     side, so passwords typed at a remote prompt are not shown locally;
//  2. Ctrl-C and Ctrl-Z reach the remote shell as bytes instead of
//     signalling oo;
//  3. the PTY starts with the size of the local terminal.
func RunInteractive(ctx context.Context, argv []string) error {
	return runInteractive(ctx, argv, os.Stdin, os.Stdout)
}

func runInteractive(ctx context.Context, argv []string, in *os.File, out io.Writer) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	f, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	if term.IsTerminal(in.Fd()) {
		_ = pty.InheritSize(in, f)
		restore, err := rawMode(in)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("set terminal raw mode: %w", err)
		}
		defer restore()
	}

	go func() {
		_, _ = io.Copy(f, in)
	}()
	_, _ = io.Copy(out, f)

	if ctx.Err() != nil {
		_ = cmd.Process.Kill()
	}
	return cmd.Wait()
}

// rawMode puts the terminal behind f into raw mode and returns the function
// that restores its previous state.
func rawMode(f *os.File) (func(), error) {
	prev, err := term.MakeRaw(f.Fd())
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(f.Fd(), prev) }, nil
}

// Process is a spawned child that outlives the invocation unless stopped.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err is the wait error; only meaningful after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Spawner starts detached processes.
type Spawner interface {
	Spawn(argv []string, stderr io.Writer) (*Process, error)
}

// Exec is the Spawner backed by os/exec.
type Exec struct{}

// Spawn starts argv in its own session with stdout discarded and stderr sent
// to the given writer.
//
// The child is detached from the terminal's process group, so Ctrl-C in the
// shell that ran oo does not reach it and it keeps running after oo exits.
// A goroutine waits on the child for as long as oo lives, which reaps it
// and closes Done on an early exit. Callers use that during the startup
// window and then simply return; the process stays up.
func (Exec) Spawn(argv []string, stderr io.Writer) (*Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	cmd.SysProcAttr = proc.Detached()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}
