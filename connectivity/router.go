// Package connectivity dispatches named service calls either to an
// in-process function or to a remote endpoint (HTTP POST or an MCP tool
// call), based on a route table supplied by configuration.
//
//	router := connectivity.New()
//	router.RegisterTransport("http", connectivity.HTTPFactory())
//	router.RegisterTransport("mcp", connectivity.MCPFactory())
//	router.RegisterLocal("discovery", stub)
//	err := router.Configure(ctx, routes)
//
//	resp, err := router.Call(ctx, "discovery", payload)
//
// Calling Configure again swaps the table; only routes whose definition
// changed are rebuilt.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler is a transport-agnostic service function: bytes in, bytes out.
// Both local Go functions and remote clients implement this signature.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory creates a Handler for a remote route. The returned close
// function is called when the route is removed or replaced; it may be nil.
type TransportFactory func(ctx context.Context, rt Route) (handler Handler, close func(), err error)

// DefaultTimeout bounds remote calls whose route sets no timeout_ms.
const DefaultTimeout = 30 * time.Second

// Route binds a service name to a strategy.
//
// Strategy is "local" (in-process handler), "noop" (succeed with no
// response) or the name of a registered transport such as "http" or "mcp".
type Route struct {
	Service     string `yaml:"service"`
	Strategy    string `yaml:"strategy"`
	Endpoint    string `yaml:"endpoint"`
	ToolName    string `yaml:"tool_name"`    // mcp
	ContentType string `yaml:"content_type"` // http
	TimeoutMs   int64  `yaml:"timeout_ms"`
}

// Timeout returns the per-call timeout of the route.
func (rt Route) Timeout() time.Duration {
	if rt.TimeoutMs > 0 {
		return time.Duration(rt.TimeoutMs) * time.Millisecond
	}
	return DefaultTimeout
}

func (rt Route) fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", rt.Strategy, rt.Endpoint, rt.ToolName, rt.ContentType, rt.TimeoutMs)
}

type remoteEntry struct {
	handler Handler
	close   func()
}

// Router dispatches service calls. Safe for concurrent use: calls take a
// read lock, Configure takes the write lock.
type Router struct {
	mu            sync.RWMutex
	localHandlers map[string]Handler
	remoteEntries map[string]remoteEntry
	routeSnap     map[string]Route
	factories     map[string]TransportFactory
	logger        *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		localHandlers: make(map[string]Handler),
		remoteEntries: make(map[string]remoteEntry),
		routeSnap:     make(map[string]Route),
		factories:     make(map[string]TransportFactory),
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-process handler for a service. It serves
// the service when its route is "local" or when no remote route exists.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.localHandlers[service] = h
	r.mu.Unlock()
}

// RegisterTransport registers a factory for a strategy name.
func (r *Router) RegisterTransport(strategy string, f TransportFactory) {
	r.mu.Lock()
	r.factories[strategy] = f
	r.mu.Unlock()
}

// Call dispatches a service call. Resolution order:
//  1. noop route: succeeds with a nil response.
//  2. remote route.
//  3. local handler.
//  4. ErrServiceNotFound.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	entry, hasRemote := r.remoteEntries[service]
	localH := r.localHandlers[service]
	snap, hasRoute := r.routeSnap[service]
	r.mu.RUnlock()

	if hasRoute && snap.Strategy == "noop" {
		r.logger.DebugContext(ctx, "routing noop", "service", service)
		return nil, nil
	}
	if hasRemote {
		r.logger.DebugContext(ctx, "routing remote",
			"service", service, "strategy", snap.Strategy, "endpoint", snap.Endpoint)
		return entry.handler(ctx, payload)
	}
	if localH != nil {
		r.logger.DebugContext(ctx, "routing local", "service", service)
		return localH(ctx, payload)
	}
	return nil, &ErrServiceNotFound{Service: service}
}

// Configure replaces the route table. Routes whose definition is unchanged
// keep their existing handler and connection. Routes that cannot be built
// are skipped; their errors are joined into the returned error while the
// remaining routes are still installed.
func (r *Router) Configure(ctx context.Context, routes []Route) error {
	newRoutes := make(map[string]Route, len(routes))
	for _, rt := range routes {
		newRoutes[rt.Service] = rt
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	newEntries := make(map[string]remoteEntry, len(newRoutes))
	for name, rt := range newRoutes {
		switch rt.Strategy {
		case "local", "noop":
			continue
		}
		if old, ok := r.routeSnap[name]; ok && old.fingerprint() == rt.fingerprint() {
			if existing, exists := r.remoteEntries[name]; exists {
				newEntries[name] = existing
				continue
			}
		}

		factory, ok := r.factories[rt.Strategy]
		if !ok {
			errs = append(errs, &ErrNoFactory{Service: name, Strategy: rt.Strategy})
			continue
		}
		h, closeFn, err := factory(ctx, rt)
		if err != nil {
			errs = append(errs, &ErrFactoryFailed{Service: name, Strategy: rt.Strategy, Endpoint: rt.Endpoint, Cause: err})
			continue
		}
		h = Chain(
			Recovery(r.logger),
			Logging(r.logger.With("service", name, "strategy", rt.Strategy)),
			Timeout(rt.Timeout()),
		)(h)
		newEntries[name] = remoteEntry{handler: h, close: closeFn}
		r.logger.Info("route built", "service", name, "strategy", rt.Strategy, "endpoint", rt.Endpoint)
	}

	for name, old := range r.remoteEntries {
		if old.close == nil {
			continue
		}
		if _, still := newEntries[name]; !still {
			old.close()
			continue
		}
		if r.routeSnap[name].fingerprint() != newRoutes[name].fingerprint() {
			old.close()
		}
	}

	r.remoteEntries = newEntries
	r.routeSnap = newRoutes

	r.logger.Info("routes configured",
		"total", len(newRoutes),
		"remote", len(newEntries),
		"local", countLocal(newRoutes))

	return errors.Join(errs...)
}

// Close shuts down all remote handlers.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.remoteEntries {
		if entry.close != nil {
			entry.close()
		}
	}
	r.remoteEntries = make(map[string]remoteEntry)
	r.routeSnap = make(map[string]Route)
	return nil
}

func countLocal(routes map[string]Route) int {
	n := 0
	for _, rt := range routes {
		if rt.Strategy == "local" {
			n++
		}
	}
	return n
}
