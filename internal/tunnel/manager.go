package tunnel

import (
	"errors"
	"fmt"

	"github.com/treykane/oo/internal/apperr"
	"github.com/treykane/oo/internal/events"
	"github.com/treykane/oo/internal/fileutil"
	"github.com/treykane/oo/internal/model"
	"github.com/treykane/oo/internal/proc"
	"github.com/treykane/oo/internal/report"
	"github.com/treykane/oo/internal/state"
)

// Manager is the live tunnel set of one invocation. Construction reconciles
// every persisted record against the process table, so the set only ever
// contains tunnels whose forwarding process is alive.
type Manager struct {
	env     *Env
	tunnels []*Tunnel
}

// NewManager loads and reconciles the state directory.
//
// Every record is sorted into one of three outcomes:
//
//   - unreadable: any PID that can still be salvaged is terminated and the
//     file is removed; a corrupt_state event is journaled.
//   - forwarding process gone: the record and its client processes are
//     cleaned up and a reaped event is journaled.
//   - alive: the tunnel joins the live set. A missing jump host is
//     recovered from the process command line.
//
// Reconciliation problems are logged, never returned; only an unreadable
// state directory fails construction.
func NewManager(env *Env) (*Manager, error) {
	if env == nil || env.Store == nil {
		return nil, errors.New("tunnel manager needs a state store")
	}
	env.fill()
	m := &Manager{env: env}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Env is the environment shared with every tunnel of the manager.
func (m *Manager) Env() *Env { return m.env }

func (m *Manager) reload() error {
	entries, err := m.env.Store.List()
	if err != nil {
		return fmt.Errorf("list tunnel state: %w", err)
	}
	m.tunnels = m.tunnels[:0]
	for _, e := range entries {
		st, err := m.env.Store.Open(e)
		if err != nil {
			m.reapCorrupt(e, err)
			continue
		}
		if !st.IsRunning(m.env.Table) {
			m.reapDead(st)
			continue
		}
		if st.JumpHost() == "" {
			m.recoverJumpHost(st)
		}
		t, err := fromState(st, m.env)
		if err != nil {
			m.reapCorrupt(e, err)
			continue
		}
		m.tunnels = append(m.tunnels, t)
	}
	return nil
}

// reapCorrupt kills whatever the unreadable record still names and removes
// it. It never fails the reload.
func (m *Manager) reapCorrupt(e state.Entry, cause error) {
	log := m.env.Log.With().Str("tunnel", e.Name).Str("path", e.Path).Logger()
	pids := state.SalvagePIDs(e.Path)
	for _, pid := range pids {
		if !m.env.Table.Alive(pid) {
			continue
		}
		if err := m.env.Table.Terminate(pid); err != nil {
			log.Warn().Err(err).Int("pid", pid).Msg("failed to terminate process of corrupt record")
		}
	}
	if err := fileutil.RemoveIfExists(e.Path); err != nil {
		log.Warn().Err(err).Msg("failed to remove corrupt record")
	}
	log.Warn().Err(cause).Ints("pids", pids).Msg("removed corrupt tunnel state")
	if err := m.env.Journal.Append(events.Event{Tunnel: e.Name, Type: events.TypeCorrupt, Message: cause.Error()}); err != nil {
		log.Warn().Err(err).Msg("failed to append event")
	}
}

func (m *Manager) reapDead(st *state.State) {
	log := m.env.Log.With().Str("tunnel", st.Name()).Logger()
	if err := st.Stop(m.env.Table); err != nil {
		log.Warn().Err(err).Msg("failed to clean up dead tunnel")
	}
	log.Debug().Int("pid", st.PID()).Msg("reaped dead tunnel")
	evt := events.Event{Tunnel: st.Name(), Profile: st.Profile(), Kind: st.Kind(), Type: events.TypeReaped, PID: st.PID()}
	if err := m.env.Journal.Append(evt); err != nil {
		log.Warn().Err(err).Msg("failed to append event")
	}
}

// recoverJumpHost fills a missing jump host from the forwarding process
// command line, whose last argument is always the jump host.
func (m *Manager) recoverJumpHost(st *state.State) {
	cmd, ok := m.env.Table.CommandLine(st.PID())
	if !ok {
		return
	}
	host := proc.LastArg(cmd)
	if host == "" {
		return
	}
	if err := st.SetJumpHost(host); err != nil {
		m.env.Log.Warn().Err(err).Str("tunnel", st.Name()).Msg("failed to persist recovered jump host")
	}
}

// Add registers an unstarted tunnel. A SOCKS tunnel without a browser
// profile is given the first one not held by another live SOCKS tunnel.
func (m *Manager) Add(t *Tunnel) error {
	if t.phase != PhaseUnstarted {
		return fmt.Errorf("tunnel %s is %s", t.name, t.phase)
	}
	if m.Tunnel(t.name) != nil {
		return alreadyRunning(t.name)
	}
	if s, ok := t.variant.(*Socks); ok && s.Browser.Path == "" && m.env.Allocator.Profiles != nil {
		p, err := m.env.Allocator.NextAvailable(m.browserProfilesInUse())
		if err != nil {
			return err
		}
		s.Browser = p
	}
	t.env = m.env
	m.tunnels = append(m.tunnels, t)
	return nil
}

// Start adds t and starts it.
func (m *Manager) Start(t *Tunnel) error {
	if err := m.Add(t); err != nil {
		return err
	}
	return t.Start()
}

func (m *Manager) browserProfilesInUse() []string {
	var out []string
	for _, t := range m.Tunnels(model.KindSocks) {
		if p, ok := t.BrowserProfile(); ok {
			out = append(out, p.Path)
		}
	}
	return out
}

// Tunnel finds a live tunnel by instance name.
func (m *Manager) Tunnel(name string) *Tunnel {
	for _, t := range m.tunnels {
		if t.Live() && t.name == name {
			return t
		}
	}
	return nil
}

// Tunnels lists the live set in start order, filtered by kind when kind is
// not empty.
func (m *Manager) Tunnels(kind model.Kind) []*Tunnel {
	var out []*Tunnel
	for _, t := range m.tunnels {
		if !t.Live() {
			continue
		}
		if kind != "" && t.Kind() != kind {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Row is t as shown in status and stop tables.
func Row(t *Tunnel) report.TunnelRow {
	row := report.TunnelRow{
		Name:     t.Name(),
		Kind:     t.Kind().Label(),
		JumpHost: t.JumpHost(),
		PID:      t.PID(),
		Ports:    t.Ports(),
	}
	if p, ok := t.BrowserProfile(); ok {
		row.BrowserProfile = p.Name
	}
	return row
}

// Rows maps Row over ts.
func Rows(ts []*Tunnel) []report.TunnelRow {
	out := make([]report.TunnelRow, 0, len(ts))
	for _, t := range ts {
		out = append(out, Row(t))
	}
	return out
}

func noneRunning(kind model.Kind) string {
	if kind == "" {
		return "No tunnels running!"
	}
	return fmt.Sprintf("No %s tunnels running!", kind.Label())
}

// Status prints the live set of kind.
func (m *Manager) Status(kind model.Kind) {
	ts := m.Tunnels(kind)
	if len(ts) == 0 {
		m.env.Out.Warn("%s", noneRunning(kind))
		return
	}
	m.env.Out.Tunnels(Rows(ts))
}

// Stop stops every tunnel in ts, carrying on past individual failures, and
// reports which ones are gone and which are still running.
//
// Each tunnel gets SIGTERM on all of its tracked processes, then up to two
// seconds to disappear from the process table. The result is printed as a
// "Stopped tunnels" table and, when needed, a "Still running" table. Stop
// only fails when something is still running afterwards, so stopping a
// tunnel that died on its own is a success.
func (m *Manager) Stop(ts []*Tunnel) error {
	var stopped, running []report.TunnelRow
	for _, t := range ts {
		row := Row(t)
		if err := t.Stop(); err != nil {
			m.env.Log.Warn().Err(err).Str("tunnel", t.name).Msg("stop reported an error")
		}
		if !t.awaitExit() {
			running = append(running, row)
			continue
		}
		stopped = append(stopped, row)
	}

	out := m.env.Out
	if len(stopped) == 0 && len(running) == 0 {
		out.Warn("No tunnels were stopped")
		return nil
	}
	if len(stopped) > 0 {
		out.Title("Stopped tunnels")
		out.Tunnels(stopped)
	}
	if len(running) > 0 {
		out.Warn("Still running")
		out.Tunnels(running)
		return apperr.Newf(apperr.KindProcess, "%d tunnel(s) are still running", len(running))
	}
	return nil
}

// StopAll stops the live set of kind. An empty set only prints a message.
func (m *Manager) StopAll(kind model.Kind) error {
	ts := m.Tunnels(kind)
	if len(ts) == 0 {
		m.env.Out.Warn("%s", noneRunning(kind))
		return nil
	}
	return m.Stop(ts)
}
