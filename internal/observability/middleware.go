package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/sketchstacker/server/observability"

// HTTPMetrics holds the server request instruments. A nil *HTTPMetrics records nothing.
type HTTPMetrics struct {
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
	bodySize metric.Int64Histogram
}

// NewHTTPMetrics creates the instruments on the global meter provider
func NewHTTPMetrics() (*HTTPMetrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &HTTPMetrics{}

	var err error
	if m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.active, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Requests currently being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.bodySize, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) track(ctx context.Context, delta int64, method attribute.KeyValue) {
	if m == nil {
		return
	}
	m.active.Add(ctx, delta, metric.WithAttributes(method))
}

func (m *HTTPMetrics) record(ctx context.Context, elapsed time.Duration, size int64, attrs []attribute.KeyValue) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attrs...)
	m.duration.Record(ctx, elapsed.Seconds(), opt)
	m.bodySize.Record(ctx, size, opt)
}

// Middleware traces and measures every request. Paths in untraced, such as
// health probes, are still measured but never start a span.
func Middleware(metrics *HTTPMetrics, untraced ...string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(instrumentationName)
	skip := make(map[string]bool, len(untraced))
	for _, p := range untraced {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			method := semconv.HTTPRequestMethodKey.String(r.Method)

			metrics.track(ctx, 1, method)
			defer metrics.track(ctx, -1, method)

			var span trace.Span
			if !skip[r.URL.Path] {
				propagator := otel.GetTextMapPropagator()
				ctx = propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
				ctx, span = tracer.Start(ctx, r.Method+" "+r.URL.Path,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						method,
						semconv.URLPath(r.URL.Path),
						semconv.URLScheme(scheme(r)),
						semconv.ServerAddress(r.Host),
						semconv.UserAgentOriginal(r.UserAgent()),
						semconv.ClientAddress(r.RemoteAddr),
					),
				)
				defer span.End()
				propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// chi fills the route pattern in while routing, so read it afterwards
			route := routePattern(r)
			status := statusOf(ww, r)
			attrs := []attribute.KeyValue{method, semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(status)}
			metrics.record(ctx, time.Since(start), int64(ww.BytesWritten()), attrs)

			if span == nil {
				return
			}
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attrs...)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}

// routePattern returns the matched chi pattern, falling back to the raw path
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// statusOf reports the response status; a hijacked /ws upgrade never calls WriteHeader
func statusOf(ww middleware.WrapResponseWriter, r *http.Request) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return http.StatusSwitchingProtocols
	}
	return http.StatusOK
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}
