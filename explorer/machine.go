// Package explorer is the client-side state machine that keeps the visible
// exploration state consistent with the server-side progress store while
// session resolution, hydration, discovery and query calls complete in any
// order.
//
// It follows the bubbletea command pattern: operations mutate the state
// synchronously and return a tea.Cmd that performs the network call without
// touching the state; Update applies the resulting message. Every operation
// is stamped with a per-activity generation and, for domain-scoped
// activities, the domain epoch. Completions whose stamp is no longer
// current are dropped.
package explorer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/content"
	"github.com/hazyhaar/progsync/progress"
)

// ProgressAPI is the session gate and progress store as seen by the client.
// *progress.Client implements it.
type ProgressAPI interface {
	Session(ctx context.Context) (*auth.Session, error)
	Load(ctx context.Context, domain progress.Domain) (progress.Record, error)
	Save(ctx context.Context, domain progress.Domain, prompt *string, payload progress.Payload) (progress.Record, error)
}

// ContentAPI is the discovery and query services. *content.Client
// implements it.
type ContentAPI interface {
	Discover(ctx context.Context, req content.DiscoveryRequest) (content.DiscoveryResponse, error)
	Ask(ctx context.Context, req content.QueryRequest) (content.QueryResponse, error)
}

// DefaultCallTimeout bounds every network call issued by a Machine.
const DefaultCallTimeout = 30 * time.Second

// Machine owns one State. Its methods must be called from a single
// goroutine (the shell's event loop); the commands they return may run
// anywhere.
type Machine struct {
	state    State
	progress ProgressAPI
	content  ContentAPI

	ctx     context.Context
	timeout time.Duration
	logger  *slog.Logger

	gens  [activityCount]uint64
	epoch uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithContext sets the parent context of every call. Cancelling it aborts
// calls in flight.
func WithContext(ctx context.Context) Option {
	return func(m *Machine) { m.ctx = ctx }
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Machine) { m.timeout = d }
}

// WithLogger sets the logger used for soft failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithState replaces the initial state.
func WithState(s State) Option {
	return func(m *Machine) { m.state = s }
}

// New creates a Machine in the Initial state.
func New(p ProgressAPI, c ContentAPI, opts ...Option) *Machine {
	m := &Machine{
		state:    Initial(),
		progress: p,
		content:  c,
		ctx:      context.Background(),
		timeout:  DefaultCallTimeout,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns a copy of the current state. The Insights slice is shared;
// callers must not modify it.
func (m *Machine) State() State { return m.state }

// issue starts a new operation of activity a, superseding any earlier one,
// and marks the activity pending.
func (m *Machine) issue(a Activity, scoped bool) stamp {
	m.gens[a]++
	*m.state.status(a) = Status{Phase: PhasePending}
	return stamp{activity: a, gen: m.gens[a], epoch: m.epoch, scoped: scoped}
}

// invalidate drops any in-flight operation of activity a.
func (m *Machine) invalidate(a Activity) {
	m.gens[a]++
}

func (m *Machine) current(s stamp) bool {
	if m.gens[s.activity] != s.gen {
		return false
	}
	return !s.scoped || s.epoch == m.epoch
}

func (m *Machine) settle(a Activity, err error) {
	if err != nil {
		*m.state.status(a) = Status{Phase: PhaseError, Err: errorMessage(err)}
		return
	}
	*m.state.status(a) = Status{Phase: PhaseOK}
}

// run wraps a network call into a command bounded by the call timeout.
func (m *Machine) run(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	parent, timeout := m.ctx, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return fn(ctx)
	}
}

// errorMessage is the user-visible text of a failed call.
func errorMessage(err error) string {
	var re *content.RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error"
}
