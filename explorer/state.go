package explorer

import (
	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/progress"
)

// Phase is the lifecycle position of one activity.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseOK
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseOK:
		return "ok"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// Status is the visible outcome of the latest operation of one activity.
// Err is set only in PhaseError.
type Status struct {
	Phase Phase
	Err   string
}

// Pending reports whether the activity has an operation in flight.
func (s Status) Pending() bool { return s.Phase == PhasePending }

// Activity identifies one kind of asynchronous operation.
type Activity int

const (
	ActivityAuth Activity = iota
	ActivityHydration
	ActivityDiscovery
	ActivityQuery
	ActivityPersist
	activityCount
)

func (a Activity) String() string {
	return [...]string{"auth", "hydration", "discovery", "query", "persist"}[a]
}

// State is the client view. It is owned by a Machine and only changes
// through Machine methods.
type State struct {
	Domain       progress.Domain
	Prompt       string
	Insights     []progress.Insight
	Summary      string
	QueryOutput  string
	QueryLatency *float64
	QueryModel   string

	Session      *auth.Session
	AuthResolved bool
	Hydrating    bool

	Auth      Status
	Hydration Status
	Discovery Status
	Query     Status
	Persist   Status
}

// Initial returns the state of a freshly started client.
func Initial() State {
	return State{
		Domain:   progress.DefaultDomain,
		Insights: []progress.Insight{},
		Summary:  progress.InitialSummary,
	}
}

// Busy reports whether discovery or query is in flight.
func (s State) Busy() bool {
	return s.Discovery.Pending() || s.Query.Pending()
}

// SignedIn reports whether a session is present.
func (s State) SignedIn() bool { return s.Session != nil }

func (s *State) status(a Activity) *Status {
	switch a {
	case ActivityAuth:
		return &s.Auth
	case ActivityHydration:
		return &s.Hydration
	case ActivityDiscovery:
		return &s.Discovery
	case ActivityQuery:
		return &s.Query
	default:
		return &s.Persist
	}
}
