package progress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Insight is one discrete content item surfaced by a discovery call.
type Insight struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Score       *float64       `json:"score,omitempty"`
	Source      *string        `json:"source,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Payload is the result snapshot stored with a progress record.
type Payload struct {
	Summary string    `json:"summary"`
	Items   []Insight `json:"items"`
}

// Validate enforces the write-boundary rules: every item has an id and a
// title, and scores lie within [0, 1]. A nil item list is normalised to an
// empty one so that stored payloads always carry "items": [].
func (p *Payload) Validate() error {
	if p.Items == nil {
		p.Items = []Insight{}
	}
	for i, it := range p.Items {
		if it.ID == "" {
			return fmt.Errorf("%w: items[%d]: id is required", ErrInvalidPayload, i)
		}
		if it.Title == "" {
			return fmt.Errorf("%w: items[%d]: title is required", ErrInvalidPayload, i)
		}
		if it.Score != nil && (math.IsNaN(*it.Score) || *it.Score < 0 || *it.Score > 1) {
			return fmt.Errorf("%w: items[%d]: score must be within [0, 1]", ErrInvalidPayload, i)
		}
	}
	return nil
}

// DecodePayload parses and validates a payload received from the network.
// Unknown fields are rejected. An absent or null payload is the empty
// payload.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		p.Items = []Insight{}
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Record is the durable (identity, domain) snapshot. A record that was
// never written has nil Prompt, Payload and UpdatedAt.
type Record struct {
	Domain    Domain     `json:"domain"`
	Prompt    *string    `json:"prompt,omitempty"`
	Payload   *Payload   `json:"payload"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// Found reports whether the record has been written at least once.
func (r Record) Found() bool {
	return r.Payload != nil
}
