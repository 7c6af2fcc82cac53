package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"github.com/salespulse/lib-dbguard/dbguard/health"
	"github.com/salespulse/lib-dbguard/dbguard/log"
)

// HealthPath is where the health document is served.
const HealthPath = "/api/health"

// Reporter assembles the health document. *health.Checker implements it.
type Reporter interface {
	Report(ctx context.Context) (*health.Report, error)
}

// HealthFailure is the body returned when the health document cannot be built.
type HealthFailure struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Health serves the health document. It answers 200 whenever the document can
// be assembled, even with the database unreachable or the circuit open; those
// conditions are carried in the body. It answers 500 only when assembly fails.
func Health(reporter Reporter, logger log.Logger) fiber.Handler {
	logger = log.OrNop(logger)

	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		report, err := reporter.Report(ctx)
		if err != nil {
			logger.Log(ctx, log.LevelError, "health check failed", log.Err(err))

			return JSONResponse(c, fiber.StatusInternalServerError, HealthFailure{
				Status:    constant.HealthStatusError,
				Error:     constant.HealthCheckFailedMessage,
				Timestamp: time.Now().UTC(),
			})
		}

		return OK(c, report)
	}
}

// RegisterRoutes mounts ping, version and health on router.
func RegisterRoutes(router fiber.Router, reporter Reporter, logger log.Logger) {
	router.Get("/ping", Ping)
	router.Get("/version", Version)
	router.Get(HealthPath, Health(reporter, logger))
}
