package shield

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/progsync/horosafe"
	"github.com/hazyhaar/progsync/idgen"
	"github.com/hazyhaar/progsync/kit"
)

// TraceHeader carries the trace id in both directions.
const TraceHeader = "X-Trace-ID"

const maxInboundTraceLen = 64

// TraceID tags each request with a trace id, reusing a well-formed inbound
// X-Trace-ID so a client can correlate its own logs. The id goes into the
// context (kit.TraceIDKey), the response header and a per-request logger
// stored under LoggerKey. One "request done" line with status and duration
// is logged when the handler returns.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := inboundTrace(r)
		if traceID == "" {
			traceID = idgen.Trace()
		}
		w.Header().Set(TraceHeader, traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = context.WithValue(ctx, LoggerKey, logger)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r.WithContext(ctx))

		level := slog.LevelDebug
		if sw.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "request done", "status", sw.status, "duration", time.Since(start))
	})
}

func inboundTrace(r *http.Request) string {
	v := r.Header.Get(TraceHeader)
	if v == "" || len(v) > maxInboundTraceLen || horosafe.ValidateIdentifier(v) != nil {
		return ""
	}
	return v
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// GetLogger returns the per-request logger, or slog.Default() outside a
// traced request.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
