package explorer

import (
	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/content"
	"github.com/hazyhaar/progsync/progress"
)

// stamp identifies an issued operation. A completion is applied only while
// its stamp is still current (see Machine.current).
type stamp struct {
	activity Activity
	gen      uint64
	epoch    uint64
	scoped   bool // discard when the domain epoch moved
}

// SessionResolvedMsg completes InitAuth.
type SessionResolvedMsg struct {
	stamp   stamp
	Session *auth.Session
	Err     error
}

// ProgressLoadedMsg completes HydrateProgress.
type ProgressLoadedMsg struct {
	stamp  stamp
	Domain progress.Domain
	Record progress.Record
	Err    error
}

// DiscoveredMsg completes TriggerDiscovery.
type DiscoveredMsg struct {
	stamp    stamp
	Domain   progress.Domain
	Prompt   string
	Response content.DiscoveryResponse
	Err      error
}

// AnsweredMsg completes AskQuery.
type AnsweredMsg struct {
	stamp    stamp
	Response content.QueryResponse
	Err      error
}

// PersistedMsg completes the save issued after a discovery.
type PersistedMsg struct {
	stamp  stamp
	Domain progress.Domain
	Record progress.Record
	Err    error
}
