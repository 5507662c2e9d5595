package explorer

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/progsync/progress"
)

// Update applies a completion message and returns any follow-up command.
// Messages of other types are ignored.
func (m *Machine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case SessionResolvedMsg:
		return m.onSession(msg)
	case ProgressLoadedMsg:
		m.onProgress(msg)
	case DiscoveredMsg:
		return m.onDiscovered(msg)
	case AnsweredMsg:
		m.onAnswered(msg)
	case PersistedMsg:
		m.onPersisted(msg)
	}
	return nil
}

func (m *Machine) onSession(msg SessionResolvedMsg) tea.Cmd {
	if !m.current(msg.stamp) {
		return nil
	}
	m.state.AuthResolved = true
	m.state.Session = msg.Session
	if msg.Err != nil {
		m.logger.Warn("explorer: session lookup failed", "error", msg.Err)
		m.state.Session = nil
	}
	m.settle(ActivityAuth, msg.Err)
	if m.state.Session == nil {
		return nil
	}
	return m.HydrateProgress(m.state.Domain)
}

func (m *Machine) onProgress(msg ProgressLoadedMsg) {
	if !m.current(msg.stamp) {
		m.logger.Debug("explorer: stale hydration dropped", "domain", msg.Domain)
		return
	}
	m.state.Hydrating = false
	m.settle(ActivityHydration, msg.Err)
	if msg.Domain != m.state.Domain {
		m.logger.Debug("explorer: hydration for unselected domain dropped", "domain", msg.Domain)
		return
	}
	if msg.Err != nil {
		m.logger.Warn("explorer: hydration failed", "domain", msg.Domain, "error", msg.Err)
		return
	}
	rec := msg.Record
	if rec.Payload == nil {
		return
	}
	m.state.Summary = rec.Payload.Summary
	m.state.Insights = nonNil(rec.Payload.Items)
	if rec.Prompt != nil {
		m.state.Prompt = *rec.Prompt
	}
}

func (m *Machine) onDiscovered(msg DiscoveredMsg) tea.Cmd {
	if !m.current(msg.stamp) {
		m.logger.Debug("explorer: stale discovery dropped", "domain", msg.Domain)
		return nil
	}
	m.settle(ActivityDiscovery, msg.Err)
	if msg.Err != nil {
		return nil
	}

	items := nonNil(msg.Response.Items)
	m.state.Insights = items
	m.state.Summary = msg.Response.Summary
	m.state.QueryOutput = msg.Response.Summary

	// A hydration still in flight for this domain carries older data.
	if m.state.Hydrating {
		m.invalidate(ActivityHydration)
		m.state.Hydrating = false
		m.state.Hydration = Status{}
	}

	if m.state.Session == nil {
		return nil
	}
	return m.persist(msg.Domain, msg.Prompt, progress.Payload{Summary: msg.Response.Summary, Items: items})
}

func (m *Machine) onAnswered(msg AnsweredMsg) {
	if !m.current(msg.stamp) {
		m.logger.Debug("explorer: stale answer dropped")
		return
	}
	m.settle(ActivityQuery, msg.Err)
	if msg.Err != nil {
		return
	}
	m.state.QueryOutput = msg.Response.Output
	m.state.QueryLatency = msg.Response.LatencyMs
	m.state.QueryModel = msg.Response.Model
}

func (m *Machine) onPersisted(msg PersistedMsg) {
	if !m.current(msg.stamp) {
		return
	}
	m.settle(ActivityPersist, msg.Err)
	if msg.Err != nil {
		m.logger.Warn("explorer: persist failed", "domain", msg.Domain, "error", msg.Err)
	}
}

func nonNil(items []progress.Insight) []progress.Insight {
	if items == nil {
		return []progress.Insight{}
	}
	return items
}
