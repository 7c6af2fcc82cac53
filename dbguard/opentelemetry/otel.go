package opentelemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNilTelemetryLogger indicates that config.Logger is nil.
	ErrNilTelemetryLogger = errors.New("telemetry config logger cannot be nil")
	// ErrMissingEndpoint is returned when telemetry is enabled without a collector endpoint.
	ErrMissingEndpoint = errors.New("collector exporter endpoint is required when telemetry is enabled")
)

// TelemetryConfig configures NewTelemetry.
type TelemetryConfig struct {
	LibraryName               string
	ServiceName               string
	ServiceVersion            string
	DeploymentEnv             string
	CollectorExporterEndpoint string
	EnableTelemetry           bool
	Logger                    log.Logger
}

// Telemetry holds the providers built by NewTelemetry.
type Telemetry struct {
	TelemetryConfig
	TracerProvider *sdktrace.TracerProvider
	MetricProvider *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	MetricsFactory *metrics.MetricsFactory
	shutdown       func(context.Context) error
}

func (cfg *TelemetryConfig) newResource() *sdkresource.Resource {
	return sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.DeploymentEnv),
		semconv.TelemetrySDKName(constant.TelemetrySDKName),
		semconv.TelemetrySDKLanguageGo,
	)
}

// NewTelemetry builds tracer, meter and logger providers. With telemetry
// disabled the providers are local and export nothing, so instrumented code
// runs unchanged. Call ApplyGlobals to install them process-wide.
func NewTelemetry(cfg TelemetryConfig) (*Telemetry, error) {
	if cfg.Logger == nil {
		return nil, ErrNilTelemetryLogger
	}

	l := cfg.Logger
	ctx := context.Background()

	if !cfg.EnableTelemetry {
		l.Log(ctx, log.LevelWarn, "telemetry turned off")

		mp := sdkmetric.NewMeterProvider()

		factory, err := metrics.NewMetricsFactory(mp.Meter(cfg.LibraryName), l)
		if err != nil {
			return nil, err
		}

		return &Telemetry{
			TelemetryConfig: cfg,
			TracerProvider:  sdktrace.NewTracerProvider(),
			MetricProvider:  mp,
			LoggerProvider:  sdklog.NewLoggerProvider(),
			MetricsFactory:  factory,
			shutdown:        func(context.Context) error { return nil },
		}, nil
	}

	if cfg.CollectorExporterEndpoint == "" {
		return nil, ErrMissingEndpoint
	}

	l.Log(ctx, log.LevelInfo, "initializing telemetry", log.String("endpoint", cfg.CollectorExporterEndpoint))

	res := cfg.newResource()

	tExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.CollectorExporterEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("can't initialize tracer exporter: %w", err)
	}

	mExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.CollectorExporterEndpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("can't initialize metric exporter: %w", err)
	}

	lExp, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(cfg.CollectorExporterEndpoint), otlploggrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("can't initialize logger exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(mExp)),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(tExp),
		sdktrace.WithResource(res),
	)

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(lExp)),
	)

	factory, err := metrics.NewMetricsFactory(mp.Meter(cfg.LibraryName), l)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		TelemetryConfig: cfg,
		TracerProvider:  tp,
		MetricProvider:  mp,
		LoggerProvider:  lp,
		MetricsFactory:  factory,
		shutdown:        shutdownAll(mp, tp, lp),
	}, nil
}

// shutdownAll flushes every provider. Provider shutdown also stops the
// exporter registered with it.
func shutdownAll(mp *sdkmetric.MeterProvider, tp *sdktrace.TracerProvider, lp *sdklog.LoggerProvider) func(context.Context) error {
	return func(ctx context.Context) error {
		var errs []error

		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("can't shutdown metric provider: %w", err))
		}

		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("can't shutdown tracer provider: %w", err))
		}

		if err := lp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("can't shutdown logger provider: %w", err))
		}

		return errors.Join(errs...)
	}
}

// ApplyGlobals installs the providers and the W3C propagator as OTEL globals.
func (tl *Telemetry) ApplyGlobals() {
	otel.SetTracerProvider(tl.TracerProvider)
	otel.SetMeterProvider(tl.MetricProvider)
	global.SetLoggerProvider(tl.LoggerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}

// Tracer returns a tracer from this telemetry's provider.
//
//nolint:ireturn
func (tl *Telemetry) Tracer(name string) trace.Tracer {
	if tl == nil || tl.TracerProvider == nil {
		return otel.Tracer(name)
	}

	return tl.TracerProvider.Tracer(name)
}

// ShutdownTelemetryWithContext flushes and stops every provider.
func (tl *Telemetry) ShutdownTelemetryWithContext(ctx context.Context) error {
	if tl == nil || tl.shutdown == nil {
		return nil
	}

	return tl.shutdown(ctx)
}

// HandleSpanError marks span failed and records err. Nil errors are ignored.
func HandleSpanError(span trace.Span, message string, err error) {
	if span == nil || err == nil {
		return
	}

	span.SetStatus(codes.Error, message+": "+err.Error())
	span.RecordError(err)
}

// ExtractHTTPContext returns the request's user context with any incoming
// W3C trace headers applied.
func ExtractHTTPContext(c *fiber.Ctx) context.Context {
	carrier := propagation.HeaderCarrier{}

	for key, value := range c.Request().Header.All() {
		carrier.Set(string(key), string(value))
	}

	return otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)
}
