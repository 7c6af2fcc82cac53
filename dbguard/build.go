package dbguard

import (
	"context"
	"errors"
	"fmt"

	"github.com/salespulse/lib-dbguard/dbguard/circuitbreaker"
	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"github.com/salespulse/lib-dbguard/dbguard/executor"
	"github.com/salespulse/lib-dbguard/dbguard/health"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry/metrics"
	"github.com/salespulse/lib-dbguard/dbguard/pool"
	"go.opentelemetry.io/otel/trace"
)

// ErrNilConfig is returned by Build when cfg is nil.
var ErrNilConfig = errors.New("dbguard: config is nil")

// Components is the assembled resilience layer. One instance is shared by
// every caller in the process.
type Components struct {
	Pool     *pool.Pool
	Breaker  *circuitbreaker.Breaker
	Executor *executor.Executor
	Health   *health.Checker
}

// Close shuts the pool down. Queued callers fail with pool.ErrPoolClosed.
func (c *Components) Close(ctx context.Context) error {
	if c == nil || c.Pool == nil {
		return nil
	}

	return c.Pool.Close(ctx)
}

type buildOptions struct {
	logger    log.Logger
	metrics   *metrics.MetricsFactory
	tracer    trace.Tracer
	connector pool.Connector
	listeners []pool.Listener
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

// WithLogger shares logger across all components.
func WithLogger(logger log.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = log.OrNop(logger)
	}
}

// WithMetricsFactory enables pool, breaker and executor metrics.
func WithMetricsFactory(factory *metrics.MetricsFactory) BuildOption {
	return func(o *buildOptions) {
		o.metrics = factory
	}
}

// WithTracer sets the tracer used for executor spans.
func WithTracer(tracer trace.Tracer) BuildOption {
	return func(o *buildOptions) {
		o.tracer = tracer
	}
}

// WithConnector replaces the pgx connector built from DatabaseURL.
func WithConnector(connector pool.Connector) BuildOption {
	return func(o *buildOptions) {
		o.connector = connector
	}
}

// WithPoolListener subscribes l to pool lifecycle events.
func WithPoolListener(l pool.Listener) BuildOption {
	return func(o *buildOptions) {
		o.listeners = append(o.listeners, l)
	}
}

// Build assembles pool, breaker, executor and health checker from cfg. The
// pool opens connections lazily; call Components.Pool.Warm to pre-open them.
func Build(cfg *Config, opts ...BuildOption) (*Components, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	o := buildOptions{logger: log.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	connector := o.connector
	if connector == nil {
		connector = pool.NewPgxConnector(cfg.DatabaseURL)
	}

	poolOpts := []pool.Option{
		pool.WithName(constant.DatabaseServiceName),
		pool.WithLogger(o.logger),
		pool.WithMetricsFactory(o.metrics),
	}

	for _, l := range o.listeners {
		poolOpts = append(poolOpts, pool.WithListener(l))
	}

	p, err := pool.New(connector, cfg.PoolConfig(), poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("build pool: %w", err)
	}

	b, err := circuitbreaker.New(constant.DatabaseServiceName, cfg.BreakerConfig(),
		circuitbreaker.WithLogger(o.logger),
		circuitbreaker.WithMetricsFactory(o.metrics),
		circuitbreaker.WithIsExcluded(executor.ExcludedFromBreaker),
	)
	if err != nil {
		return nil, closeOnError(p, fmt.Errorf("build breaker: %w", err))
	}

	exec, err := executor.New(p, b, cfg.ExecutorConfig(),
		executor.WithLogger(o.logger),
		executor.WithMetricsFactory(o.metrics),
		executor.WithTracer(o.tracer),
	)
	if err != nil {
		return nil, closeOnError(p, fmt.Errorf("build executor: %w", err))
	}

	checker, err := health.NewChecker(p, b, health.WithLogger(o.logger))
	if err != nil {
		return nil, closeOnError(p, fmt.Errorf("build health checker: %w", err))
	}

	return &Components{Pool: p, Breaker: b, Executor: exec, Health: checker}, nil
}

func closeOnError(p *pool.Pool, err error) error {
	if closeErr := p.Close(context.Background()); closeErr != nil {
		return errors.Join(err, closeErr)
	}

	return err
}
