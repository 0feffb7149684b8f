// Package ui holds the terminal front ends: the live status dashboard, the
// startup progress bar and the init form.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/treykane/oo/internal/report"
	"github.com/treykane/oo/internal/util"
)

// Source feeds the dashboard. Reload must reconcile against the process
// table on every call; the dashboard keeps no state of its own.
type Source interface {
	Reload() ([]report.TunnelRow, error)
	Stop(name string) error
}

type tickMsg time.Time

type rowsMsg struct {
	rows []report.TunnelRow
	err  error
}

type stoppedMsg struct {
	name string
	err  error
}

type watchModel struct {
	src     Source
	title   string
	refresh time.Duration
	table   table.Model
	rows    []report.TunnelRow
	status  string
	width   int
}

var columnWidths = []int{28, 6, 24, 8, 14, 24}

func newWatchModel(src Source, title string, refresh time.Duration) watchModel {
	if refresh <= 0 {
		refresh = util.DefaultRefreshSeconds * time.Second
	}
	cols := make([]table.Column, len(report.TunnelHeaders))
	for i, h := range report.TunnelHeaders {
		cols[i] = table.Column{Title: h, Width: columnWidths[i]}
	}
	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)
	return watchModel{src: src, title: title, refresh: refresh, table: t, status: "Loading..."}
}

func (m watchModel) load() tea.Cmd {
	return func() tea.Msg {
		rows, err := m.src.Reload()
		return rowsMsg{rows: rows, err: err}
	}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) stop(name string) tea.Cmd {
	return func() tea.Msg {
		return stoppedMsg{name: name, err: m.src.Stop(name)}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tea.Batch(m.load(), m.tick())
	case rowsMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.setRows(msg.rows)
		m.status = fmt.Sprintf("%d tunnel(s), refreshed %s", len(msg.rows), time.Now().Format("15:04:05"))
		return m, nil
	case stoppedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("stop %s failed: %v", msg.name, msg.err)
		} else {
			m.status = "Stopped " + msg.name
		}
		return m, m.load()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.load()
		case "x":
			row := m.table.SelectedRow()
			if len(row) == 0 {
				m.status = "Nothing selected"
				return m, nil
			}
			m.status = "Stopping " + row[0] + "..."
			return m, m.stop(row[0])
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *watchModel) setRows(rows []report.TunnelRow) {
	m.rows = rows
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row(r.Cells()))
	}
	m.table.SetRows(out)
	if c := m.table.Cursor(); c >= len(out) && len(out) > 0 {
		m.table.SetCursor(len(out) - 1)
	}
}

func (m watchModel) View() string {
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render(m.title)
	body := m.table.View()
	if len(m.rows) == 0 {
		body = "No tunnels running!"
	}
	foot := lipgloss.NewStyle().Foreground(lipgloss.Color("244")).
		Render(fmt.Sprintf("every %s | x stop selected | r refresh | q quit", m.refresh))
	return strings.Join([]string{head, body, m.status, foot}, "\n") + "\n"
}

// Watch runs the dashboard until the user quits.
func Watch(src Source, title string, refresh time.Duration) error {
	_, err := tea.NewProgram(newWatchModel(src, title, refresh), tea.WithAltScreen()).Run()
	return err
}
