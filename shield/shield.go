// Package shield provides the HTTP middleware stack of the progress API:
// security headers, JSON body limits, request tracing with a per-request
// structured logger, and the single-origin CORS policy.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack() {
//	    r.Use(mw)
//	}
//	r.With(shield.CORS(shield.CORSConfig{Origin: origin, Methods: "GET,OPTIONS"})).
//	    Get("/api/session", auth.SessionHandler)
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// MaxJSONBody bounds request bodies across the API, a saved progress
// payload included.
const MaxJSONBody int64 = 256 << 10

// DefaultAPIStack returns the standard middleware stack for a JSON API.
// Ordered: SecurityHeaders, MaxBody, TraceID.
func DefaultAPIStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		SecurityHeaders(DefaultHeaders()),
		MaxBody(MaxJSONBody),
		TraceID,
	}
}
