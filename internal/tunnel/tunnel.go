// Package tunnel starts, tracks and stops autossh forwarding processes.
//
// A Tunnel is one named forwarding process plus the client (browser or
// remote desktop viewer) launched once it is up. Its runtime state lives in a
// state.State record so that later invocations of the CLI, which share no
// memory with this one, can find and stop it. The Manager reconciles those
// records against the process table on construction.
package tunnel

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/treykane/oo/internal/applog"
	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/browser"
	"github.com/treykane/oo/internal/config"
	"github.com/treykane/oo/internal/events"
	"github.com/treykane/oo/internal/fileutil"
	"github.com/treykane/oo/internal/history"
	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/platform"
	"github.com/treykane/oo/internal/proc"
	"github.com/treykane/oo/internal/report"
	"github.com/treykane/oo/internal/sshclient"
	"github.com/treykane/oo/internal/state"
	"github.com/treykane/oo/internal/util"
)

// Phase is the lifecycle position of a tunnel within one invocation.
type Phase int

const (
	PhaseUnstarted Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseUnstarted:
		return "unstarted"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Progress receives one Advance per startup poll.
type Progress interface {
	Advance()
	Finish(ok bool)
}

type nopProgress struct{}

func (nopProgress) Advance()    {}
func (nopProgress) Finish(bool) {}

// Env is everything a tunnel needs from the invocation. It is built once by
// the CLI and shared by the manager and all of its tunnels.
type Env struct {
	Store         *state.Store
	Table         proc.Table
	Client        *sshclient.Client
	Spawner       sshclient.Spawner
	Allocator     browser.Allocator
	BrowserBinary string
	Platform      platform.OS
	Log           *applog.Log
	Journal       *events.Store
	History       *history.Store
	Out           *report.Printer

	Attempts int
	Interval time.Duration
	Progress func(label string, steps int) Progress
	LookPath func(name string) (string, bool)
}

func (e *Env) fill() {
	if e.Table == nil {
		e.Table = proc.System()
	}
	if e.Client == nil {
		e.Client = sshclient.New(sshclient.Options{})
	}
	if e.Spawner == nil {
		e.Spawner = sshclient.Exec{}
	}
	if e.Log == nil {
		e.Log = applog.Nop()
	}
	if e.Out == nil {
		e.Out = report.NewPrinter(io.Discard)
	}
	if e.Attempts <= 0 {
		e.Attempts = util.DefaultStartupAttempts
	}
	if e.Interval <= 0 {
		e.Interval = util.DefaultStartupInterval
	}
	if e.Progress == nil {
		e.Progress = func(string, int) Progress { return nopProgress{} }
	}
	if e.LookPath == nil {
		e.LookPath = func(name string) (string, bool) { return platform.LookPath(name) }
	}
}

func (e *Env) record(t *Tunnel, typ, msg string) {
	evt := events.Event{Tunnel: t.name, Profile: t.profile, Kind: t.Kind(), Type: typ, Message: msg, PID: t.PID()}
	if err := e.Journal.Append(evt); err != nil {
		e.Log.Warn().Err(err).Msg("failed to append event")
	}
}

// Tunnel is one forwarding process and its clients.
type Tunnel struct {
	name     string
	profile  string
	jumpHost string
	variant  Variant
	phase    Phase
	state    *state.State
	env      *Env

	browserBin string
}

// NewSocks builds an unstarted SOCKS tunnel for profile. The instance name
// is the profile name.
func NewSocks(p config.Profile) (*Tunnel, error) {
	if strings.TrimSpace(p.JumpHost) == "" {
		return nil, apperr.Newf(apperr.KindConfig, "profile %s has no jump_host", p.Name)
	}
	return &Tunnel{
		name:     p.Name,
		profile:  p.Name,
		jumpHost: p.JumpHost,
		variant: &Socks{
			Port:      p.ForwardPort,
			ProxyHost: util.DefaultString(p.ForwardHost, util.LoopbackHost),
			URLs:      append([]string(nil), p.URLs...),
		},
	}, nil
}

// NewDesktop builds an unstarted RDP or VNC tunnel forwarding to the named
// hosts of profile. The instance name is <profile>.<kind>.<host>[+<host>...].
func NewDesktop(kind model.Kind, p config.Profile, hosts ...string) (*Tunnel, error) {
	if kind != model.KindRDP && kind != model.KindVNC {
		return nil, fmt.Errorf("%s is not a desktop tunnel kind", kind)
	}
	if strings.TrimSpace(p.JumpHost) == "" {
		return nil, apperr.Newf(apperr.KindConfig, "profile %s has no jump_host", p.Name)
	}
	if len(hosts) == 0 {
		return nil, apperr.Newf(apperr.KindUsage, "%s needs at least one host", kind)
	}
	var (
		d     Desktop
		names []string
		seen  = map[string]bool{}
	)
	for _, name := range hosts {
		h, err := p.Host(string(kind), name)
		if err != nil {
			return nil, err
		}
		if seen[h.Name] {
			continue
		}
		seen[h.Name] = true
		d.Hosts = append(d.Hosts, h)
		names = append(names, h.Name)
	}
	var v Variant = &RDP{d}
	if kind == model.KindVNC {
		v = &VNC{d}
	}
	return &Tunnel{
		name:     fmt.Sprintf("%s.%s.%s", p.Name, kind, strings.Join(names, "+")),
		profile:  p.Name,
		jumpHost: p.JumpHost,
		variant:  v,
	}, nil
}

// fromState rebuilds a running tunnel from its persisted record.
func fromState(st *state.State, env *Env) (*Tunnel, error) {
	rec := st.Record()
	v, err := variantFromRecord(rec)
	if err != nil {
		return nil, err
	}
	return &Tunnel{
		name:     rec.Name,
		profile:  rec.Profile,
		jumpHost: rec.JumpHost,
		variant:  v,
		phase:    PhaseRunning,
		state:    st,
		env:      env,
	}, nil
}

func (t *Tunnel) Name() string     { return t.name }
func (t *Tunnel) Profile() string  { return t.profile }
func (t *Tunnel) Kind() model.Kind { return kindOf(t.variant) }
func (t *Tunnel) Phase() Phase     { return t.phase }
func (t *Tunnel) Variant() Variant { return t.variant }

// JumpHost prefers the persisted value, which may have been recovered from
// the process table.
func (t *Tunnel) JumpHost() string {
	if t.state != nil && t.state.JumpHost() != "" {
		return t.state.JumpHost()
	}
	return t.jumpHost
}

// PID of the forwarding process, or 0 before spawn.
func (t *Tunnel) PID() int {
	if t.state == nil {
		return 0
	}
	return t.state.PID()
}

// Ports lists the local ports the tunnel listens on.
func (t *Tunnel) Ports() []int {
	switch v := t.variant.(type) {
	case *Socks:
		if v.Port > 0 {
			return []int{v.Port}
		}
		return nil
	default:
		d := desktopOf(v)
		out := make([]int, 0, len(d.Forwards))
		for _, f := range d.Forwards {
			out = append(out, f.LocalPort)
		}
		return out
	}
}

// BrowserProfile is the profile held by a SOCKS tunnel.
func (t *Tunnel) BrowserProfile() (browser.Profile, bool) {
	s, ok := t.variant.(*Socks)
	if !ok || s.Browser.Path == "" {
		return browser.Profile{}, false
	}
	return s.Browser, true
}

// Live reports whether the tunnel still belongs to the manager's live set.
func (t *Tunnel) Live() bool { return t.phase != PhaseStopped }

// Running asks the process table whether the forwarding process is alive.
func (t *Tunnel) Running() bool {
	return t.state != nil && t.env != nil && t.state.IsRunning(t.env.Table)
}

const stopGrace = 2 * time.Second

// awaitExit gives a terminated process a moment to disappear from the
// process table.
func (t *Tunnel) awaitExit() bool {
	deadline := time.Now().Add(stopGrace)
	for t.Running() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
	return true
}

func (t *Tunnel) log() *zerolog.Logger {
	l := t.env.Log.With().Str("tunnel", t.name).Str("kind", string(t.Kind())).Logger()
	return &l
}

// RuntimeDependenciesMet checks that every binary the start will exec is
// resolvable, before anything is spawned.
func (t *Tunnel) RuntimeDependenciesMet() error {
	env := t.env
	var missing []string
	if _, ok := env.LookPath(env.Client.Autossh()); !ok {
		missing = append(missing, env.Client.Autossh())
	}
	switch v := t.variant.(type) {
	case *Socks:
		if len(v.URLs) > 0 {
			bin, err := t.resolveBrowser()
			if err != nil {
				return dependencyError(err, fmt.Sprintf("browser automation is not supported on %s", env.Platform))
			}
			if bin == "" {
				missing = append(missing, util.DefaultString(env.BrowserBinary, "firefox"))
			}
			t.browserBin = bin
		}
	case *RDP, *VNC:
		action, err := platform.DesktopClient(env.Platform, t.Kind(), 1)
		if err != nil {
			return dependencyError(err, fmt.Sprintf("%s clients are not supported on %s", t.Kind().Label(), env.Platform))
		}
		if b := action.Binary(); b != "" {
			if _, ok := env.LookPath(b); !ok {
				missing = append(missing, b)
			}
		}
	}
	if len(missing) > 0 {
		return dependencyError(errors.New(strings.Join(missing, ", ")),
			fmt.Sprintf("%s is not installed, or is not in the path", strings.Join(missing, " and ")))
	}
	return nil
}

func dependencyError(cause error, msg string) error {
	return apperr.Wrap(apperr.KindDependency, fmt.Errorf("%w: %w", ErrDependencyNotMet, cause), msg)
}

func (t *Tunnel) resolveBrowser() (string, error) {
	if t.env.BrowserBinary != "" {
		p, _ := t.env.LookPath(t.env.BrowserBinary)
		return p, nil
	}
	candidates, err := platform.BrowserCandidates(t.env.Platform)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if p, ok := t.env.LookPath(c); ok {
			return p, nil
		}
	}
	return "", nil
}

// Start spawns the forwarding process and waits for it to prove it did not
// exit immediately.
//
// The steps, in order:
//
//  1. A record left by an earlier invocation under the same name is checked.
//     A live one fails with ErrAlreadyRunning; a dead or unreadable one is
//     removed.
//  2. RuntimeDependenciesMet resolves every binary that will be executed.
//  3. Local ports are validated or allocated.
//  4. autossh is spawned with its stderr going to the invocation log.
//  5. The record is persisted as soon as the PID exists, so a crash during
//     startup still leaves something for the next reconciliation to reap.
//  6. The process is polled Attempts times, Interval apart. An exit inside
//     that window deletes the record and returns a *ProcessFailedError
//     naming the log file.
//  7. The jump host is stored, the start is journaled and the profile is
//     marked as recently used.
//  8. The browser or desktop client is launched. Client failures only warn;
//     the tunnel stays up.
//
// Any error leaves the tunnel in PhaseStopped, outside the live set.
func (t *Tunnel) Start() (err error) {
	if t.env == nil {
		return fmt.Errorf("tunnel %s is not registered with a manager", t.name)
	}
	if t.phase != PhaseUnstarted {
		return fmt.Errorf("tunnel %s is %s", t.name, t.phase)
	}
	defer func() {
		if err != nil {
			t.phase = PhaseStopped
		}
	}()
	env := t.env
	if err := t.clearPrevious(); err != nil {
		return err
	}
	if err := t.RuntimeDependenciesMet(); err != nil {
		return err
	}
	if err := t.allocatePorts(); err != nil {
		return err
	}

	t.phase = PhaseStarting
	env.record(t, events.TypeStartRequested, "")
	argv := t.argv()
	t.log().Debug().Strs("argv", argv).Msg("spawning forwarding process")
	p, err := env.Spawner.Spawn(argv, env.Log.Sink())
	if err != nil {
		env.record(t, events.TypeStartFailed, err.Error())
		return apperr.Wrap(apperr.KindProcess, err, fmt.Sprintf("could not start %s: %v", argv[0], err))
	}
	st, err := env.Store.Create(t.name, t.initialRecord(p.PID()))
	if err != nil {
		_ = env.Table.Terminate(p.PID())
		return err
	}
	t.state = st

	if err := t.confirm(p); err != nil {
		_ = st.Delete()
		env.record(t, events.TypeStartFailed, err.Error())
		t.log().Error().Err(err).Msg("forwarding process exited during startup")
		return err
	}
	if err := st.SetJumpHost(t.jumpHost); err != nil {
		_ = st.Stop(env.Table)
		return err
	}
	t.phase = PhaseRunning
	env.record(t, events.TypeStarted, strings.Join(argv, " "))
	t.log().Info().Int("pid", p.PID()).Ints("ports", t.Ports()).Msg("tunnel started")
	if err := env.History.Touch(t.profile); err != nil {
		t.log().Warn().Err(err).Msg("failed to record history")
	}

	switch v := t.variant.(type) {
	case *Socks:
		t.launchBrowser(v)
	case *RDP:
		t.launchDesktop(&v.Desktop)
	case *VNC:
		t.launchDesktop(&v.Desktop)
	}
	return nil
}

// clearPrevious refuses to start over a live record and removes a dead or
// unreadable one.
func (t *Tunnel) clearPrevious() error {
	env := t.env
	prev, err := env.Store.Load(t.name)
	switch {
	case err == nil:
		if prev.IsRunning(env.Table) {
			return alreadyRunning(t.name)
		}
		return prev.Stop(env.Table)
	case errors.Is(err, state.ErrNotFound):
		return nil
	case errors.Is(err, state.ErrCorrupt):
		return fileutil.RemoveIfExists(env.Store.Path(t.name))
	default:
		return err
	}
}

func (t *Tunnel) allocatePorts() error {
	switch v := t.variant.(type) {
	case *Socks:
		if v.Port > 0 {
			return util.ValidatePort(v.Port)
		}
		port, err := util.FreePort()
		if err != nil {
			return apperr.Wrap(apperr.KindResource, err, "could not allocate a local port")
		}
		v.Port = port
		return nil
	default:
		d := desktopOf(v)
		used := map[int]bool{}
		for _, h := range d.Hosts {
			if h.LocalPort <= 0 {
				continue
			}
			if err := util.ValidatePort(h.LocalPort); err != nil {
				return apperr.Wrap(apperr.KindConfig, err, fmt.Sprintf("invalid local_port for %s: %v", h.Name, err))
			}
			if used[h.LocalPort] {
				return apperr.Newf(apperr.KindConfig, "local_port %d is set for more than one host of profile %s", h.LocalPort, t.profile)
			}
			used[h.LocalPort] = true
		}
		d.Forwards = d.Forwards[:0]
		for _, h := range d.Hosts {
			lp := h.LocalPort
			if lp <= 0 {
				var err error
				if lp, err = freePortExcept(used); err != nil {
					return apperr.Wrap(apperr.KindResource, err, "could not allocate a local port")
				}
				used[lp] = true
			}
			d.Forwards = append(d.Forwards, model.Forward{
				Host:       h.Name,
				LocalPort:  lp,
				RemoteHost: h.Host,
				RemotePort: h.Port,
			})
		}
		return nil
	}
}

func freePortExcept(used map[int]bool) (int, error) {
	for i := 0; i < 10; i++ {
		p, err := util.FreePort()
		if err != nil {
			return 0, err
		}
		if !used[p] {
			return p, nil
		}
	}
	return 0, errors.New("no distinct free port found")
}

func (t *Tunnel) argv() []string {
	switch v := t.variant.(type) {
	case *Socks:
		return t.env.Client.SocksArgv(v.Port, t.jumpHost)
	default:
		return t.env.Client.ForwardArgv(desktopOf(v).Forwards, t.jumpHost)
	}
}

func (t *Tunnel) initialRecord(pid int) model.Record {
	rec := model.Record{Profile: t.profile, Kind: t.Kind(), PID: pid}
	switch v := t.variant.(type) {
	case *Socks:
		rec.ForwardPort = v.Port
		rec.BrowserProfileName = v.Browser.Name
		rec.BrowserProfilePath = v.Browser.Path
	default:
		rec.Forwards = append([]model.Forward(nil), desktopOf(v).Forwards...)
	}
	return rec
}

// confirm polls the spawned process for a bounded number of intervals. Any
// exit inside the window is a failure.
func (t *Tunnel) confirm(p *sshclient.Process) error {
	env := t.env
	bar := env.Progress("Starting "+t.name, env.Attempts)
	for i := 0; i < env.Attempts; i++ {
		select {
		case <-p.Done():
			bar.Finish(false)
			return processFailed(&ProcessFailedError{
				Name:    t.name,
				After:   time.Duration(i) * env.Interval,
				LogPath: env.Log.Path(),
				Err:     p.Err(),
			})
		case <-time.After(env.Interval):
			bar.Advance()
		}
	}
	bar.Finish(true)
	return nil
}

// Stop terminates every tracked process, the forwarding process and any
// client it launched, and deletes the record. Stopping a tunnel whose
// processes are already gone succeeds, and stopping it twice is a no-op.
// Stop does not wait for the processes to exit; Manager.Stop does.
func (t *Tunnel) Stop() error {
	if t.phase == PhaseStopped {
		return nil
	}
	t.phase = PhaseStopping
	var err error
	if t.state != nil {
		err = t.state.Stop(t.env.Table)
	}
	t.phase = PhaseStopped
	if t.env != nil {
		t.env.record(t, events.TypeStopped, "")
		t.log().Info().Err(err).Msg("tunnel stopped")
	}
	return err
}
