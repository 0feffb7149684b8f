package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/treykane/oo/internal/report"
)

type fakeSource struct {
	rows    []report.TunnelRow
	stopped []string
	err     error
}

func (f *fakeSource) Reload() ([]report.TunnelRow, error) { return f.rows, f.err }

func (f *fakeSource) Stop(name string) error {
	f.stopped = append(f.stopped, name)
	var kept []report.TunnelRow
	for _, r := range f.rows {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func run(t *testing.T, m tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	m, _ = m.Update(cmd())
	return m
}

func TestWatchStopsSelectedTunnel(t *testing.T) {
	src := &fakeSource{rows: []report.TunnelRow{
		{Name: "foo", Kind: "SOCKS", PID: 10, Ports: []int{2080}},
		{Name: "foo.rdp.alpha", Kind: "RDP", PID: 11, Ports: []int{60001}},
	}}
	var m tea.Model = newWatchModel(src, "oo tunnels", time.Second)
	m = run(t, m, m.(watchModel).load())
	if !strings.Contains(m.View(), "foo.rdp.alpha") {
		t.Fatalf("expected both rows in view:\n%s", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = run(t, m, cmd)
	if len(src.stopped) != 1 || src.stopped[0] != "foo.rdp.alpha" {
		t.Fatalf("expected selected tunnel to be stopped, got %v", src.stopped)
	}
	if !strings.Contains(m.(watchModel).status, "Stopped foo.rdp.alpha") {
		t.Fatalf("unexpected status %q", m.(watchModel).status)
	}
}

func TestWatchReportsReloadError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	var m tea.Model = newWatchModel(src, "oo tunnels", time.Second)
	m = run(t, m, m.(watchModel).load())
	if !strings.Contains(m.(watchModel).status, "boom") {
		t.Fatalf("unexpected status %q", m.(watchModel).status)
	}
	if !strings.Contains(m.View(), "No tunnels running!") {
		t.Fatalf("expected empty message:\n%s", m.View())
	}
}

func TestWatchQuits(t *testing.T) {
	m := newWatchModel(&fakeSource{}, "oo tunnels", time.Second)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q must quit")
	}
}
