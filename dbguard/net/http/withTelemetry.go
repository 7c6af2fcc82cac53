package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "github.com/salespulse/lib-dbguard/dbguard/net/http"

// TelemetryMiddleware continues incoming W3C traces, wraps each request in a
// server span and writes a debug access line.
type TelemetryMiddleware struct {
	tracer trace.Tracer
	logger log.Logger
}

// NewTelemetryMiddleware builds the middleware. A nil tracer uses the global one.
func NewTelemetryMiddleware(tracer trace.Tracer, logger log.Logger) *TelemetryMiddleware {
	if tracer == nil {
		tracer = otel.Tracer(httpTracerName)
	}

	return &TelemetryMiddleware{tracer: tracer, logger: log.OrNop(logger)}
}

// WithTelemetry is the fiber handler.
func (tm *TelemetryMiddleware) WithTelemetry(c *fiber.Ctx) error {
	start := time.Now()

	ctx, span := tm.tracer.Start(opentelemetry.ExtractHTTPContext(c),
		fmt.Sprintf("%s %s", c.Method(), c.Path()),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", c.Method()),
			attribute.String("url.path", c.Path()),
		),
	)
	defer span.End()

	c.SetUserContext(ctx)

	err := c.Next()

	status := c.Response().StatusCode()
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	if status >= fiber.StatusInternalServerError {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
	}

	tm.logger.Log(ctx, log.LevelDebug, "http request",
		log.String("method", c.Method()),
		log.String("path", c.Path()),
		log.Int("status", status),
		log.Duration("duration", time.Since(start)),
	)

	return err
}
