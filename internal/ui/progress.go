package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// Bar is a single-line startup progress bar. It draws nothing unless w is a
// terminal, so piped output stays clean.
type Bar struct {
	w     io.Writer
	label string
	steps int
	done  int
	tty   bool
	bar   progress.Model
}

// NewBar returns a bar of steps increments.
func NewBar(w io.Writer, label string, steps int) *Bar {
	if steps <= 0 {
		steps = 1
	}
	return &Bar{
		w:     w,
		label: label,
		steps: steps,
		tty:   isTerminal(w),
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Percent is the share of steps completed.
func (b *Bar) Percent() float64 {
	if b.done >= b.steps {
		return 1
	}
	return float64(b.done) / float64(b.steps)
}

func (b *Bar) Advance() {
	if b.done < b.steps {
		b.done++
	}
	b.draw()
}

// Finish completes the bar on success and ends the line either way.
func (b *Bar) Finish(ok bool) {
	if ok {
		b.done = b.steps
	}
	b.draw()
	if b.tty {
		fmt.Fprintln(b.w)
	}
}

func (b *Bar) draw() {
	if !b.tty {
		return
	}
	fmt.Fprintf(b.w, "\r%s %s", b.label, b.bar.ViewAs(b.Percent()))
}
