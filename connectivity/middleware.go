package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hazyhaar/progsync/kit"
)

// HandlerMiddleware wraps a Handler without changing its signature.
type HandlerMiddleware func(next Handler) Handler

// Chain composes middlewares; the first one is the outermost wrapper.
func Chain(mws ...HandlerMiddleware) HandlerMiddleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call with its duration and the caller's trace id.
func Logging(logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, payload)
			attrs := []any{
				"duration_ms", time.Since(start).Milliseconds(),
				"payload_bytes", len(payload),
			}
			if tid := kit.GetTraceID(ctx); tid != "" {
				attrs = append(attrs, "trace_id", tid)
			}
			if err != nil {
				logger.ErrorContext(ctx, "call failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "call ok", append(attrs, "response_bytes", len(resp))...)
			}
			return resp, err
		}
	}
}

// Timeout bounds each call to d. A call cut short by this deadline, rather
// than by the caller's own context, fails with *ErrCallTimeout.
func Timeout(d time.Duration) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			resp, err := next(tctx, payload)
			if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
				return nil, &ErrCallTimeout{After: d, Cause: err}
			}
			return resp, err
		}
	}
}

// Recovery converts panics in downstream handlers into *ErrPanic.
func Recovery(logger *slog.Logger) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "handler panic recovered",
						"panic", r,
						"stack", string(debug.Stack()))
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, payload)
		}
	}
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return "connectivity: handler panicked"
}
