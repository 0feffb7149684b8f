package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/treykane/oo/internal/config"
)

// ErrCanceled is returned when the user leaves a form without submitting.
var ErrCanceled = errors.New("canceled")

// Field indices of the init form.
const (
	fieldProfile = iota
	fieldJumpHost
	fieldCount
)

// JumpTarget is a parsed [user@]host[:port] jump host.
type JumpTarget struct {
	Host string
	User string
	Port int
}

// ParseJumpTarget accepts host, user@host, host:port and user@host:port.
func ParseJumpTarget(input string) (JumpTarget, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return JumpTarget{}, fmt.Errorf("jump host cannot be empty")
	}

	t := JumpTarget{Port: 22}
	if at := strings.Index(input, "@"); at > 0 {
		t.User = input[:at]
		input = input[at+1:]
	}
	if colon := strings.LastIndex(input, ":"); colon > 0 {
		if port, err := strconv.Atoi(input[colon+1:]); err == nil && port > 0 && port <= 65535 {
			t.Port = port
			input = input[:colon]
		}
	}
	t.Host = input
	if t.Host == "" {
		return JumpTarget{}, fmt.Errorf("hostname cannot be empty")
	}
	return t, nil
}

// initForm collects the profile name and jump host for `oo tunnels init`.
type initForm struct {
	fields   []textinput.Model
	focusIdx int
	errMsg   string

	result   *config.InitOptions
	canceled bool
}

func newInitForm(profile, jump string) *initForm {
	f := &initForm{fields: make([]textinput.Model, fieldCount)}
	placeholders := []string{"work (required)", "ops@bastion.example.com:22 (required)"}
	values := []string{profile, jump}
	for i := range f.fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 256
		ti.Width = 40
		ti.SetValue(values[i])
		f.fields[i] = ti
	}
	f.fields[0].Focus()
	return f
}

func (f *initForm) Init() tea.Cmd { return textinput.Blink }

func (f *initForm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return f, nil
	}
	switch key.String() {
	case "esc", "ctrl+c":
		f.canceled = true
		return f, tea.Quit
	case "tab", "shift+tab", "up", "down":
		f.fields[f.focusIdx].Blur()
		if key.String() == "tab" || key.String() == "down" {
			f.focusIdx = (f.focusIdx + 1) % fieldCount
		} else {
			f.focusIdx = (f.focusIdx - 1 + fieldCount) % fieldCount
		}
		f.fields[f.focusIdx].Focus()
		return f, textinput.Blink
	case "enter":
		opts, err := f.options()
		if err != nil {
			f.errMsg = err.Error()
			return f, nil
		}
		f.result = &opts
		return f, tea.Quit
	default:
		var cmd tea.Cmd
		f.fields[f.focusIdx], cmd = f.fields[f.focusIdx].Update(msg)
		f.errMsg = ""
		return f, cmd
	}
}

func (f *initForm) options() (config.InitOptions, error) {
	profile := strings.ToLower(strings.TrimSpace(f.fields[fieldProfile].Value()))
	if profile == "" {
		return config.InitOptions{}, fmt.Errorf("profile name is required")
	}
	if strings.ContainsAny(profile, "/. ") {
		return config.InitOptions{}, fmt.Errorf("profile name cannot contain '/', '.' or spaces")
	}
	jump, err := ParseJumpTarget(f.fields[fieldJumpHost].Value())
	if err != nil {
		return config.InitOptions{}, err
	}
	return config.InitOptions{Profile: profile, JumpHost: jump.Host, JumpUser: jump.User, JumpPort: jump.Port}, nil
}

func (f *initForm) View() string {
	labels := []string{"Profile:", "Jump host:"}
	accent := lipgloss.Color("214")

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(accent).Render("New tunnels configuration") + "\n\n")
	for i, label := range labels {
		cursor := "  "
		if i == f.focusIdx {
			cursor = "> "
		}
		b.WriteString(fmt.Sprintf("%s%-11s %s\n", cursor, label, f.fields[i].View()))
	}
	if f.errMsg != "" {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString("\n" + errStyle.Render("Error: "+f.errMsg) + "\n")
	}
	b.WriteString("\nTab/Shift-Tab navigate | Enter submit | Esc cancel\n")
	return b.String()
}

// PromptInit asks for the profile name and jump host, prefilled with the
// given values. Only the profile, jump host, user and port of the returned
// options are set.
func PromptInit(profile, jump string) (config.InitOptions, error) {
	f := newInitForm(profile, jump)
	if _, err := tea.NewProgram(f).Run(); err != nil {
		return config.InitOptions{}, err
	}
	if f.canceled || f.result == nil {
		return config.InitOptions{}, ErrCanceled
	}
	return *f.result, nil
}
