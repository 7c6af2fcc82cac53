// Command dbguard serves the database health endpoint over a resilient
// PostgreSQL connection pool.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/salespulse/lib-dbguard/dbguard"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	httpkit "github.com/salespulse/lib-dbguard/dbguard/net/http"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry"
	"github.com/salespulse/lib-dbguard/dbguard/runtime"
	"github.com/salespulse/lib-dbguard/dbguard/server"
	"github.com/salespulse/lib-dbguard/dbguard/zap"
)

const warmTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	dbguard.InitLocalEnvConfig()

	cfg, err := dbguard.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := zap.New(cfg.LoggerConfig())
	if err != nil {
		return err
	}

	telemetry, err := opentelemetry.NewTelemetry(opentelemetry.TelemetryConfig{
		LibraryName:               cfg.OtelLibraryName,
		ServiceName:               cfg.OtelServiceName,
		ServiceVersion:            cfg.Version,
		DeploymentEnv:             cfg.EnvName,
		CollectorExporterEndpoint: cfg.OtelEndpoint,
		EnableTelemetry:           cfg.EnableTelemetry,
		Logger:                    logger,
	})
	if err != nil {
		return err
	}

	telemetry.ApplyGlobals()
	runtime.InitPanicMetrics(telemetry.MetricsFactory, logger)

	components, err := dbguard.Build(cfg,
		dbguard.WithLogger(logger),
		dbguard.WithMetricsFactory(telemetry.MetricsFactory),
		dbguard.WithTracer(telemetry.Tracer(cfg.OtelLibraryName)),
	)
	if err != nil {
		return err
	}

	warmCtx, cancel := context.WithTimeout(context.Background(), warmTimeout)
	if err := components.Pool.Warm(warmCtx); err != nil {
		// The pool keeps dialling on demand; startup does not depend on the database.
		logger.Log(warmCtx, log.LevelWarn, "db pool warm-up incomplete", log.Err(err))
	}

	cancel()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          httpkit.NewErrorHandler(logger),
	})

	app.Use(httpkit.NewTelemetryMiddleware(telemetry.Tracer(cfg.OtelLibraryName), logger).WithTelemetry)
	httpkit.RegisterRoutes(app, components.Health, logger)

	return server.NewServerManager(components, telemetry, logger).
		WithHTTPServer(app, cfg.ServerAddress).
		StartWithGracefulShutdown()
}
