// Package kit carries request-scoped values shared by the HTTP layers:
// the resolved identity, the session token id and the request trace id.
package kit

import "context"

type contextKey string

// Context keys. Exported so middleware can document what it injects; use
// the With/Get helpers to read and write them.
const (
	UserIDKey    contextKey = "kit_user_id"
	SessionIDKey contextKey = "kit_session_id"
	TraceIDKey   contextKey = "kit_trace_id"
)

func with(ctx context.Context, key contextKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func lookup(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithUserID records the identity the session gate resolved. An empty id
// leaves ctx unchanged.
func WithUserID(ctx context.Context, id string) context.Context { return with(ctx, UserIDKey, id) }

// GetUserID returns the identity resolved for the request, or "" when the
// caller is anonymous.
func GetUserID(ctx context.Context) string { return lookup(ctx, UserIDKey) }

func WithSessionID(ctx context.Context, id string) context.Context {
	return with(ctx, SessionIDKey, id)
}

func GetSessionID(ctx context.Context) string { return lookup(ctx, SessionIDKey) }

func WithTraceID(ctx context.Context, id string) context.Context { return with(ctx, TraceIDKey, id) }

func GetTraceID(ctx context.Context) string { return lookup(ctx, TraceIDKey) }

// Anonymous reports whether no identity has been resolved for ctx.
func Anonymous(ctx context.Context) bool { return GetUserID(ctx) == "" }
