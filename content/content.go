// Package content is the typed client of the external discovery and query
// services. Calls go through a connectivity router, so each service can be
// reached over HTTP, MCP or an in-process handler depending on configuration.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/progsync/connectivity"
	"github.com/hazyhaar/progsync/progress"
)

// Service names as routed by connectivity.
const (
	ServiceDiscovery = "discovery"
	ServiceQuery     = "query"
)

// ModeGeneral is the query mode used outside any domain.
const ModeGeneral = "general"

// DiscoveryRequest asks the discovery service for insights in a domain.
type DiscoveryRequest struct {
	Domain  progress.Domain `json:"domain"`
	Prompt  string          `json:"prompt"`
	Filters map[string]any  `json:"filters"`
}

// DiscoveryResponse is the discovery service result.
type DiscoveryResponse struct {
	Domain   progress.Domain    `json:"domain"`
	Summary  string             `json:"summary"`
	Items    []progress.Insight `json:"items"`
	LLMTrace *string            `json:"llm_trace,omitempty"`
}

// ChatMessage is one turn of a query conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// QueryRequest is a free-form prompt answered with the current insights as
// context.
type QueryRequest struct {
	Mode         string             `json:"mode"`
	Prompt       string             `json:"prompt"`
	Context      []progress.Insight `json:"context"`
	History      []ChatMessage      `json:"history,omitempty"`
	TravelIntent map[string]any     `json:"travel_intent,omitempty"`
}

// QueryResponse is the query service result.
type QueryResponse struct {
	Output    string   `json:"output"`
	Model     string   `json:"model"`
	LatencyMs *float64 `json:"latency_ms,omitempty"`
}

// Caller dispatches a named service call. *connectivity.Router implements it.
type Caller interface {
	Call(ctx context.Context, service string, payload []byte) ([]byte, error)
}

// Client calls the content services.
type Client struct {
	caller Caller
}

// NewClient creates a Client over caller.
func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

// Discover runs a discovery for req.Domain. A nil Filters map is sent as {}.
func (c *Client) Discover(ctx context.Context, req DiscoveryRequest) (DiscoveryResponse, error) {
	if req.Filters == nil {
		req.Filters = map[string]any{}
	}
	var resp DiscoveryResponse
	if err := c.call(ctx, ServiceDiscovery, req, &resp); err != nil {
		return DiscoveryResponse{}, err
	}
	if resp.Items == nil {
		resp.Items = []progress.Insight{}
	}
	return resp, nil
}

// Ask sends a query. An empty Mode is sent as ModeGeneral.
func (c *Client) Ask(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	if req.Mode == "" {
		req.Mode = ModeGeneral
	}
	if req.Context == nil {
		req.Context = []progress.Insight{}
	}
	var resp QueryResponse
	if err := c.call(ctx, ServiceQuery, req, &resp); err != nil {
		return QueryResponse{}, err
	}
	return resp, nil
}

func (c *Client) call(ctx context.Context, service string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &RequestError{Service: service, Message: "encode request", Err: err}
	}
	data, err := c.caller.Call(ctx, service, payload)
	if err != nil {
		return &RequestError{Service: service, Message: failureMessage(err), Err: err}
	}
	if len(data) == 0 {
		return &RequestError{Service: service, Message: "API request failed"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RequestError{Service: service, Message: fmt.Sprintf("invalid %s response", service), Err: err}
	}
	return nil
}

// RequestError is a failed content service call. Message is suitable for
// display.
type RequestError struct {
	Service string
	Message string
	Err     error
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Err }

// failureMessage picks the text shown to the user: the remote error body
// when the service answered, else a fixed fallback.
func failureMessage(err error) string {
	var rs *connectivity.ErrRemoteStatus
	if errors.As(err, &rs) {
		if msg := strings.TrimSpace(rs.Body); msg != "" {
			return msg
		}
		return "API request failed"
	}
	var tf *connectivity.ErrToolFailed
	if errors.As(err, &tf) && tf.Message != "" {
		return tf.Message
	}
	return err.Error()
}
