package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// sidecarRoutes is the fixed route set the HTTP sidecar serves. Requests
// outside it are folded into a single metric label so probes hitting
// arbitrary paths cannot blow up label cardinality.
var sidecarRoutes = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// route maps a request path onto the sidecar's route set, or "other".
func route(path string) string {
	if _, ok := sidecarRoutes[path]; ok {
		return path
	}
	return "other"
}

// responseCapture remembers the status code the downstream handler wrote.
type responseCapture struct {
	http.ResponseWriter
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

// Middleware instruments the sidecar's handlers. It continues an incoming
// W3C trace (or starts a fresh one), exposes the trace ID to the caller as
// X-Correlation-ID, records request latency into
// [Metrics.HTTPRequestDuration] keyed by method and route, and logs each
// completed request with its trace context.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", route(r.URL.Path)),
				),
			)
			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))

			Logger(ctx).LogAttrs(ctx, slog.LevelInfo, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
