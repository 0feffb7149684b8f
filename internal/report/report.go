// Package report renders the tables printed by status, stop and profile ls.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/treykane/oo/internal/util"
)

// TunnelHeaders are the columns of every tunnel table.
var TunnelHeaders = []string{"Profile", "Kind", "Jump Host", "PID", "Forward Port", "Browser Profile"}

// TunnelRow is one tunnel as shown in a table.
type TunnelRow struct {
	Name           string
	Kind           string
	JumpHost       string
	PID            int
	Ports          []int
	BrowserProfile string
}

// Cells renders r in TunnelHeaders order.
func (r TunnelRow) Cells() []string {
	return []string{
		r.Name,
		r.Kind,
		util.EmptyDash(r.JumpHost),
		util.IntDash(r.PID),
		util.JoinInts(r.Ports, ","),
		util.EmptyDash(r.BrowserProfile),
	}
}

// Printer writes styled output to one writer. Styling degrades to plain text
// when the writer is not a terminal.
type Printer struct {
	w       io.Writer
	r       *lipgloss.Renderer
	title   lipgloss.Style
	header  lipgloss.Style
	border  lipgloss.Style
	warning lipgloss.Style
}

func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		r:       r,
		title:   r.NewStyle().Bold(true),
		header:  r.NewStyle().Bold(true).Padding(0, 1),
		border:  r.NewStyle().Foreground(lipgloss.Color("8")),
		warning: r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// Title prints a bold line.
func (p *Printer) Title(format string, args ...any) {
	fmt.Fprintln(p.w, p.title.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a highlighted informational line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.warning.Render(fmt.Sprintf(format, args...)))
}

// Println prints an unstyled line.
func (p *Printer) Println(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Tunnels renders rows under TunnelHeaders.
func (p *Printer) Tunnels(rows []TunnelRow) {
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, r.Cells())
	}
	p.Table(TunnelHeaders, cells)
}

// Table renders an arbitrary grid.
func (p *Printer) Table(headers []string, rows [][]string) {
	cell := p.r.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			return cell
		}).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.w, t.String())
}
