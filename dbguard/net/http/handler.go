package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/salespulse/lib-dbguard/dbguard"
	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry"
	"go.opentelemetry.io/otel/trace"
)

// Ping returns HTTP Status 200 with response "pong".
func Ping(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// Version returns HTTP Status 200 with the VERSION the process was started with.
func Version(c *fiber.Ctx) error {
	return OK(c, fiber.Map{
		"version":     dbguard.GetenvOrDefault("VERSION", "0.0.0"),
		"requestDate": time.Now().UTC(),
	})
}

// NewErrorHandler returns a fiber error handler that logs through logger and
// renders ErrorResponse. Details of non-fiber errors never reach the client.
func NewErrorHandler(logger log.Logger) fiber.ErrorHandler {
	logger = log.OrNop(logger)

	return func(c *fiber.Ctx, err error) error {
		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}

		opentelemetry.HandleSpanError(trace.SpanFromContext(ctx), "handler error", err)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return WriteError(c, fe.Code, constant.DefaultErrorTitle, fe.Message)
		}

		logger.Log(ctx, log.LevelError, "handler error",
			log.String("method", c.Method()),
			log.String("path", c.Path()),
			log.Err(err),
		)

		return WriteError(c, fiber.StatusInternalServerError, constant.DefaultErrorTitle, "internal server error")
	}
}
