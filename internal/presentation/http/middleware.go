package httppresentation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bookshop-io/payments/internal/observability"
	"github.com/bookshop-io/payments/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("payments.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctxWithSpan, span := tracer.Start(parentCtx,
			r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withRequestLogger injects a request-scoped logger carrying the request id
// and trace identifiers, so downstream use cases log with shared context.
func (h *Handler) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := h.log
		if reqID := r.Header.Get(headerRequestID); reqID != "" {
			logger = logger.With(observability.F("request_id", reqID))
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			logger = logger.With(
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}

		ctx := logctx.With(r.Context(), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withHTTPMetrics records request counts and latencies against the stable
// route template to keep label cardinality low.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		if h.tel == nil {
			return
		}
		route := routeTemplate(r)
		h.tel.Metrics().Counter(observability.MHTTPRequests).Add(1,
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", strconv.Itoa(lrw.status)),
		)
		h.tel.Metrics().Histogram(observability.MHTTPRequestDuration).Observe(time.Since(start).Seconds(),
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", strconv.Itoa(lrw.status)),
		)
	})
}

// withAccessLog writes a single access log after the handler completes.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeTemplate(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

func routeTemplate(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
