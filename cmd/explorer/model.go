package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hazyhaar/progsync/explorer"
	"github.com/hazyhaar/progsync/progress"
)

type inputMode int

const (
	modeDiscover inputMode = iota
	modeAsk
)

var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8a8a"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e63946"))
	boxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).Padding(0, 1)
)

// model hosts an explorer.Machine in a bubbletea program. All Machine
// calls happen inside Update, on the program's event loop.
type model struct {
	machine   *explorer.Machine
	input     textinput.Model
	mode      inputMode
	signInURL string
	width     int
}

func newModel(m *explorer.Machine, signInURL string) model {
	ti := textinput.New()
	ti.Placeholder = "describe what you are looking for…"
	ti.CharLimit = 500
	ti.Focus()
	return model{machine: m, input: ti, signInURL: signInURL, width: 80}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.machine.InitAuth())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-8, 20)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			return m, m.machine.SetDomain(m.cycleDomain(1))
		case "shift+tab":
			return m, m.machine.SetDomain(m.cycleDomain(-1))
		case "ctrl+a":
			m.toggleMode()
			return m, nil
		case "enter":
			return m.submit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.mode == modeDiscover {
			m.machine.SetPrompt(m.input.Value())
		}
		return m, cmd
	}

	if cmd := m.machine.Update(msg); cmd != nil {
		m.syncInput()
		return m, cmd
	}
	m.syncInput()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	if m.mode == modeAsk {
		m.input.SetValue("")
		return m, m.machine.AskQuery(value)
	}
	m.machine.SetPrompt(value)
	return m, m.machine.TriggerDiscovery(nil)
}

func (m *model) toggleMode() {
	if m.mode == modeDiscover {
		m.mode = modeAsk
		m.input.SetValue("")
		m.input.Placeholder = "ask a question about these results…"
		return
	}
	m.mode = modeDiscover
	m.input.SetValue(m.machine.State().Prompt)
	m.input.Placeholder = "describe what you are looking for…"
}

// syncInput mirrors a prompt restored by hydration into the input box.
func (m *model) syncInput() {
	if m.mode == modeDiscover && m.input.Value() != m.machine.State().Prompt {
		m.input.SetValue(m.machine.State().Prompt)
		m.input.CursorEnd()
	}
}

func (m model) cycleDomain(step int) progress.Domain {
	domains := progress.KnownDomains()
	i := slices.Index(domains, m.machine.State().Domain)
	return domains[(i+step+len(domains))%len(domains)]
}

func (m model) View() string {
	s := m.machine.State()
	info, _ := progress.Lookup(s.Domain)
	accent := lipgloss.Color(info.Accent)
	title := lipgloss.NewStyle().Bold(true).Foreground(accent)

	var b strings.Builder
	b.WriteString(m.tabs(s.Domain))
	b.WriteString("\n\n")
	b.WriteString(title.Render(info.Title))
	b.WriteString("  ")
	b.WriteString(subtleStyle.Render(info.Description))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(m.sessionLine(s)))
	b.WriteString("\n\n")

	label := "discover"
	if m.mode == modeAsk {
		label = "ask"
	}
	b.WriteString(boxStyle.BorderForeground(accent).Render(label + " › " + m.input.View()))
	b.WriteString("\n")
	b.WriteString(statusLine(s))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(s.Summary))
	b.WriteString("\n")
	for _, it := range s.Insights {
		b.WriteString("\n")
		b.WriteString(title.Render("• " + it.Title))
		if it.Score != nil {
			b.WriteString(subtleStyle.Render(fmt.Sprintf("  %.0f%%", *it.Score*100)))
		}
		if it.Description != "" {
			b.WriteString("\n  " + it.Description)
		}
	}

	if s.QueryOutput != "" && s.QueryOutput != s.Summary {
		b.WriteString("\n\n")
		b.WriteString(boxStyle.BorderForeground(accent).Render(s.QueryOutput))
		if s.QueryLatency != nil {
			b.WriteString("\n" + subtleStyle.Render(fmt.Sprintf("%s · %.0f ms", s.QueryModel, *s.QueryLatency)))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(subtleStyle.Render("tab: next category · ctrl+a: discover/ask · enter: submit · esc: quit"))
	return b.String()
}

func (m model) tabs(current progress.Domain) string {
	var parts []string
	for _, d := range progress.Domains() {
		style := subtleStyle
		if d.Domain == current {
			style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(d.Accent)).Underline(true)
		}
		parts = append(parts, style.Render(d.Title))
	}
	return strings.Join(parts, "   ")
}

func (m model) sessionLine(s explorer.State) string {
	switch {
	case !s.AuthResolved:
		return "checking session…"
	case s.Session == nil:
		return "not signed in, progress is not saved (sign in at " + m.signInURL + ")"
	case s.Hydrating:
		return "signed in as " + displayName(s) + " · restoring progress…"
	default:
		return "signed in as " + displayName(s)
	}
}

func displayName(s explorer.State) string {
	if s.Session.User.Name != "" {
		return s.Session.User.Name
	}
	return s.Session.User.ID
}

func statusLine(s explorer.State) string {
	var parts []string
	for _, st := range []struct {
		name   string
		status explorer.Status
	}{
		{"discovery", s.Discovery},
		{"query", s.Query},
		{"save", s.Persist},
	} {
		switch st.status.Phase {
		case explorer.PhasePending:
			parts = append(parts, subtleStyle.Render(st.name+"…"))
		case explorer.PhaseError:
			parts = append(parts, errorStyle.Render(st.name+": "+st.status.Err))
		}
	}
	return strings.Join(parts, "  ")
}
