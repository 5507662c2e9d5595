package connectivity

import (
	"fmt"
	"time"
)

// ErrServiceNotFound is returned when Call targets a service with no route
// and no local handler.
type ErrServiceNotFound struct {
	Service string
}

func (e *ErrServiceNotFound) Error() string {
	return fmt.Sprintf("connectivity: service not routable: %s", e.Service)
}

// ErrNoFactory is reported by Configure when a route's strategy has no
// registered TransportFactory.
type ErrNoFactory struct {
	Service  string
	Strategy string
}

func (e *ErrNoFactory) Error() string {
	return fmt.Sprintf("connectivity: no transport factory for strategy %q (service %s)", e.Strategy, e.Service)
}

// ErrFactoryFailed is reported by Configure when a TransportFactory fails
// to build a handler for a route.
type ErrFactoryFailed struct {
	Service  string
	Strategy string
	Endpoint string
	Cause    error
}

func (e *ErrFactoryFailed) Error() string {
	return fmt.Sprintf("connectivity: factory %q failed for service %s (endpoint %s): %v",
		e.Strategy, e.Service, e.Endpoint, e.Cause)
}

func (e *ErrFactoryFailed) Unwrap() error { return e.Cause }

// ErrRemoteStatus is returned by HTTP handlers when the endpoint answers
// with a non-2xx status. Body holds the response text.
type ErrRemoteStatus struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *ErrRemoteStatus) Error() string {
	return fmt.Sprintf("connectivity/http: status %d: %s", e.Status, e.Body)
}

// ErrToolFailed is returned by MCP handlers when the tool reports an error
// result.
type ErrToolFailed struct {
	Tool    string
	Message string
}

func (e *ErrToolFailed) Error() string {
	return fmt.Sprintf("connectivity/mcp: tool %s failed: %s", e.Tool, e.Message)
}

// ErrCallTimeout is returned when a remote call exceeds its route timeout.
type ErrCallTimeout struct {
	After time.Duration
	Cause error
}

func (e *ErrCallTimeout) Error() string {
	return fmt.Sprintf("connectivity: call timed out after %s", e.After)
}

func (e *ErrCallTimeout) Unwrap() error { return e.Cause }
