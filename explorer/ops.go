package explorer

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/progsync/content"
	"github.com/hazyhaar/progsync/progress"
)

// InitAuth resolves the session. When one is found, Update follows up with
// a hydration of the selected domain.
func (m *Machine) InitAuth() tea.Cmd {
	st := m.issue(ActivityAuth, false)
	api := m.progress
	return m.run(func(ctx context.Context) tea.Msg {
		s, err := api.Session(ctx)
		return SessionResolvedMsg{stamp: st, Session: s, Err: err}
	})
}

// SetDomain switches the selected domain. The summary becomes the domain's
// static description, insights are cleared and every domain-scoped
// operation still in flight is abandoned. It returns the hydration of the
// new domain, or nil without a session.
func (m *Machine) SetDomain(d progress.Domain) tea.Cmd {
	m.epoch++
	m.state.Domain = d
	m.state.Summary = d.Description()
	m.state.Insights = []progress.Insight{}
	m.state.Hydrating = false
	m.state.Hydration = Status{}
	m.state.Discovery = Status{}
	m.state.Query = Status{}
	return m.HydrateProgress(d)
}

// SetPrompt records a user edit of the prompt text.
func (m *Machine) SetPrompt(p string) {
	m.state.Prompt = p
}

// HydrateProgress loads the stored progress of d (the selected domain when
// d is empty). It is a no-op without a session, or when d is not the
// selected domain since that record could never be shown. Failures are
// logged and recorded in the hydration status only.
func (m *Machine) HydrateProgress(d progress.Domain) tea.Cmd {
	if m.state.Session == nil {
		return nil
	}
	if d == "" {
		d = m.state.Domain
	}
	if d != m.state.Domain {
		m.logger.Debug("explorer: hydration for unselected domain ignored", "domain", d, "selected", m.state.Domain)
		return nil
	}
	m.state.Hydrating = true
	st := m.issue(ActivityHydration, true)
	api := m.progress
	return m.run(func(ctx context.Context) tea.Msg {
		rec, err := api.Load(ctx, d)
		return ProgressLoadedMsg{stamp: st, Domain: d, Record: rec, Err: err}
	})
}

// TriggerDiscovery runs a discovery for the selected domain with the
// current prompt, or with *override when non-nil. On success Update
// persists the result if a session exists.
func (m *Machine) TriggerDiscovery(override *string) tea.Cmd {
	prompt := m.state.Prompt
	if override != nil {
		prompt = *override
	}
	d := m.state.Domain
	st := m.issue(ActivityDiscovery, true)
	api := m.content
	return m.run(func(ctx context.Context) tea.Msg {
		resp, err := api.Discover(ctx, content.DiscoveryRequest{Domain: d, Prompt: prompt, Filters: map[string]any{}})
		return DiscoveredMsg{stamp: st, Domain: d, Prompt: prompt, Response: resp, Err: err}
	})
}

// AskQuery sends a free-form prompt with the current insights as context.
// The answer is not persisted. A blank prompt is ignored.
func (m *Machine) AskQuery(prompt string) tea.Cmd {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}
	req := content.QueryRequest{
		Prompt:  prompt,
		Mode:    string(m.state.Domain),
		Context: append([]progress.Insight(nil), m.state.Insights...),
	}
	st := m.issue(ActivityQuery, true)
	api := m.content
	return m.run(func(ctx context.Context) tea.Msg {
		resp, err := api.Ask(ctx, req)
		return AnsweredMsg{stamp: st, Response: resp, Err: err}
	})
}

func (m *Machine) persist(d progress.Domain, prompt string, payload progress.Payload) tea.Cmd {
	st := m.issue(ActivityPersist, false)
	api := m.progress
	return m.run(func(ctx context.Context) tea.Msg {
		rec, err := api.Save(ctx, d, &prompt, payload)
		return PersistedMsg{stamp: st, Domain: d, Record: rec, Err: err}
	})
}
