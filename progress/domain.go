package progress

import (
	"fmt"

	"github.com/hazyhaar/progsync/horosafe"
)

// Domain names a category of content the user can explore.
type Domain string

const (
	DomainJobs   Domain = "jobs"
	DomainTravel Domain = "travel"
	DomainTrends Domain = "trends"
)

// DefaultDomain is selected when a client starts.
const DefaultDomain = DomainJobs

// InitialSummary is shown before any domain content is loaded.
const InitialSummary = "Choose a category to spin up curated intelligence."

// DomainInfo is the static presentation metadata of a domain.
type DomainInfo struct {
	Domain      Domain
	Title       string
	Accent      string // hex colour
	Description string
}

var catalog = []DomainInfo{
	{DomainJobs, "Career Intelligence", "#9d4edd", "Curated job leads, hiring patterns, and skills spikes."},
	{DomainTravel, "Travel Radar", "#48bfe3", "Live flight drops, coliving retreats, and nomad perks."},
	{DomainTrends, "Culture Pulse", "#f4a261", "Social formats and viral signals across major platforms."},
}

// Domains returns the closed set of known domains in display order.
func Domains() []DomainInfo {
	out := make([]DomainInfo, len(catalog))
	copy(out, catalog)
	return out
}

// KnownDomains returns the identifiers of Domains().
func KnownDomains() []Domain {
	out := make([]Domain, len(catalog))
	for i, d := range catalog {
		out[i] = d.Domain
	}
	return out
}

// Lookup returns the metadata of d.
func Lookup(d Domain) (DomainInfo, bool) {
	for _, info := range catalog {
		if info.Domain == d {
			return info, true
		}
	}
	return DomainInfo{}, false
}

// Description returns the static description of d, or "" for unknown domains.
func (d Domain) Description() string {
	info, _ := Lookup(d)
	return info.Description
}

// Validate checks that d is a non-empty storage token. It does not check
// membership in the known set.
func (d Domain) Validate() error {
	if err := horosafe.ValidateIdentifier(string(d)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	return nil
}
