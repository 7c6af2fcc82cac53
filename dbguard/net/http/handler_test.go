//go:build unit

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/salespulse/lib-dbguard/dbguard/circuitbreaker"
	"github.com/salespulse/lib-dbguard/dbguard/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type reporterFunc func(ctx context.Context) (*health.Report, error)

func (f reporterFunc) Report(ctx context.Context) (*health.Report, error) {
	return f(ctx)
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()

	var doc map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&doc))

	return doc
}

func newApp(reporter Reporter) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: NewErrorHandler(nil)})
	RegisterRoutes(app, reporter, nil)

	return app
}

func TestPing(t *testing.T) {
	t.Parallel()

	resp, err := newApp(nil).Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}

func TestVersion(t *testing.T) {
	t.Setenv("VERSION", "1.4.2")

	resp, err := newApp(nil).Test(httptest.NewRequest(fiber.MethodGet, "/version", nil))
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.4.2", decode(t, resp.Body)["version"])
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("document assembled", func(t *testing.T) {
		t.Parallel()

		reporter := reporterFunc(func(context.Context) (*health.Report, error) {
			return &health.Report{
				Status:    "ok",
				Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				DB: health.DB{
					Connected: false,
					Pool:      health.PoolStatus{Total: 3, Idle: 1, Waiting: 4},
					Circuit:   health.BreakerState{State: circuitbreaker.StateOpen},
				},
			}, nil
		})

		resp, err := newApp(reporter).Test(httptest.NewRequest(fiber.MethodGet, HealthPath, nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		doc := decode(t, resp.Body)
		assert.Equal(t, "ok", doc["status"])
		assert.Equal(t, "2026-03-01T12:00:00Z", doc["timestamp"])

		db := doc["db"].(map[string]any)
		assert.Equal(t, false, db["connected"])
		assert.Equal(t, map[string]any{"total": 3.0, "idle": 1.0, "waiting": 4.0}, db["pool"])
		assert.Equal(t, "open", db["circuit"].(map[string]any)["state"])
	})

	t.Run("document cannot be assembled", func(t *testing.T) {
		t.Parallel()

		reporter := reporterFunc(func(context.Context) (*health.Report, error) {
			return nil, errors.New("status read failed")
		})

		resp, err := newApp(reporter).Test(httptest.NewRequest(fiber.MethodGet, HealthPath, nil))
		require.NoError(t, err)

		defer resp.Body.Close()

		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

		doc := decode(t, resp.Body)
		assert.Equal(t, "error", doc["status"])
		assert.Equal(t, "Health check failed", doc["error"])
		assert.Contains(t, doc, "timestamp")
		assert.NotContains(t, doc, "db")
	})
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	app := fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: NewErrorHandler(nil)})
	app.Get("/missing", func(*fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "no such route") })
	app.Get("/boom", func(*fiber.Ctx) error { return errors.New("password=hunter2 leaked") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "no such route", decode(t, resp.Body)["message"])
	resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	doc := decode(t, resp.Body)
	assert.Equal(t, "500", doc["code"])
	assert.NotContains(t, doc["message"], "hunter2")
	resp.Body.Close()
}

func TestTelemetryMiddleware(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(NewTelemetryMiddleware(tp.Tracer("test"), nil).WithTelemetry)
	app.Get("/ping", Ping)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	require.NoError(t, err)
	resp.Body.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /ping", spans[0].Name())

	var status int64
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "http.response.status_code" {
			status = attr.Value.AsInt64()
		}
	}

	assert.Equal(t, int64(fiber.StatusOK), status)
}
