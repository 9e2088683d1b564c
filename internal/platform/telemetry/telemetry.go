// Package telemetry instruments the HTTP server: one OpenTelemetry span and
// one set of Prometheus observations per request, keyed by route pattern.
package telemetry

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kingprasham/dicom-c-sub004/internal/platform/metrics"
)

// ServiceName is reported as the tracer instrumentation name.
const ServiceName = "pacs-server"

// Config controls which signals the middleware emits.
type Config struct {
	TracingEnabled bool
	Metrics        *metrics.Metrics
	// SkipPaths are served without spans or metrics (e.g. /metrics itself).
	SkipPaths []string
}

// Route returns the matched route pattern, falling back to the raw path for
// unmatched requests.
func Route(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}

// Middleware returns an echo middleware that wraps every request in a server
// span named "HTTP {method} {route}" and records request metrics.
func Middleware(cfg Config) echo.MiddlewareFunc {
	tracer := otel.Tracer(ServiceName)
	propagator := otel.GetTextMapPropagator()
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if _, ok := skip[req.URL.Path]; ok {
				return next(c)
			}

			done := cfg.Metrics.TrackActive()
			defer done()
			start := time.Now()

			var span trace.Span
			if cfg.TracingEnabled {
				ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
				ctx, span = tracer.Start(ctx, "HTTP "+req.Method+" "+Route(c),
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						attribute.String("http.method", req.Method),
						attribute.String("http.route", Route(c)),
					))
				defer span.End()
				c.SetRequest(req.WithContext(ctx))
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}

			cfg.Metrics.RecordHTTPRequest(req.Method, Route(c), status, time.Since(start))

			if span != nil {
				span.SetAttributes(attribute.Int("http.status_code", status))
				if rid, ok := c.Get("request_id").(string); ok && rid != "" {
					span.SetAttributes(attribute.String("request.id", rid))
				}
				if status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(status))
				}
				if err != nil {
					span.RecordError(err)
				}
			}
			return err
		}
	}
}
