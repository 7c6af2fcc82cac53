package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/salespulse/lib-dbguard/dbguard/backoff"
	"github.com/salespulse/lib-dbguard/dbguard/circuitbreaker"
	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry/metrics"
	"github.com/salespulse/lib-dbguard/dbguard/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultOperationTimeout bounds a whole retry sequence.
	DefaultOperationTimeout = 30 * time.Second

	tracerName = "github.com/salespulse/lib-dbguard/dbguard/executor"
	spanName   = "db.execute"

	kindRead  = "read"
	kindWrite = "write"

	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeFallback = "fallback"
	outcomeRejected = "rejected"
)

// ConnRunner lends a pooled connection to fn and takes it back afterwards.
// *pool.Pool implements it.
type ConnRunner interface {
	WithConn(ctx context.Context, fn func(ctx context.Context, conn *pool.PooledConn) error) error
}

// Config holds the executor's timing policy.
type Config struct {
	// OperationTimeout bounds acquisition, queries and backoff waits together.
	OperationTimeout time.Duration
	// Retry is the per-call retry policy.
	Retry backoff.Policy
	// Production redacts driver error details from logs.
	Production bool
}

// DefaultConfig returns three attempts with 2s and 4s waits inside a 30s budget.
func DefaultConfig() Config {
	return Config{
		OperationTimeout: DefaultOperationTimeout,
		Retry:            backoff.NewExponentialPolicy(backoff.DefaultMaxAttempts, backoff.DefaultBase),
	}
}

// Executor is the resilient query entry point shared by all callers.
type Executor struct {
	pool    ConnRunner
	breaker *circuitbreaker.Breaker
	cfg     Config
	logger  log.Logger
	metrics *metrics.MetricsFactory
	tracer  trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(e *Executor) {
		e.logger = log.OrNop(logger)
	}
}

// WithMetricsFactory enables attempt and fallback counters.
func WithMetricsFactory(factory *metrics.MetricsFactory) Option {
	return func(e *Executor) {
		e.metrics = factory
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// New builds an executor over p guarded by b.
func New(p ConnRunner, b *circuitbreaker.Breaker, cfg Config, opts ...Option) (*Executor, error) {
	if p == nil {
		return nil, ErrNilPool
	}

	if b == nil {
		return nil, ErrNilBreaker
	}

	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}

	e := &Executor{
		pool:    p,
		breaker: b,
		cfg:     cfg,
		logger:  log.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Query runs a read. While the breaker is open it returns FallbackResult and
// a nil error without touching the database.
func (e *Executor) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	ctx, span := e.startSpan(ctx, kindRead, sql)
	defer span.End()

	res, err := e.execute(ctx, kindRead, sql, args)
	if circuitbreaker.IsRejected(err) {
		e.breaker.RecordFallback()
		e.recordFallback(ctx)
		e.logger.Log(ctx, log.LevelWarn, constant.FallbackWarning, log.String("breaker", e.breaker.Name()))
		span.SetAttributes(attribute.String(constant.AttrDBOperationOutcome, outcomeFallback))

		return FallbackResult(), nil
	}

	return e.finish(span, res, err)
}

// Exec runs a write. While the breaker is open it fails with ErrCircuitOpen.
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (*Result, error) {
	ctx, span := e.startSpan(ctx, kindWrite, sql)
	defer span.End()

	res, err := e.execute(ctx, kindWrite, sql, args)
	if circuitbreaker.IsRejected(err) {
		err = fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		span.SetAttributes(attribute.String(constant.AttrDBOperationOutcome, outcomeRejected))
		opentelemetry.HandleSpanError(span, "write rejected", err)

		return nil, err
	}

	return e.finish(span, res, err)
}

func (e *Executor) finish(span trace.Span, res *Result, err error) (*Result, error) {
	if err != nil {
		span.SetAttributes(attribute.String(constant.AttrDBOperationOutcome, outcomeError))
		opentelemetry.HandleSpanError(span, "database call failed", err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(constant.AttrDBOperationOutcome, outcomeOK),
		attribute.Int(constant.AttrDBAttempts, res.Attempts),
	)

	return res, nil
}

func (e *Executor) startSpan(ctx context.Context, kind, sql string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String(constant.AttrDBSystem, constant.DBSystemPostgreSQL),
		attribute.String(constant.AttrDBOperationKind, kind),
		attribute.String("db.query.text", sql),
	))
}

// execute is the breaker-guarded, time-bounded retry sequence.
func (e *Executor) execute(ctx context.Context, kind, sql string, args []any) (*Result, error) {
	var attempts int

	out, err := e.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
		defer cancel()

		res, n, err := e.runWithRetry(opCtx, sql, args)
		attempts = n

		if err != nil {
			return nil, e.classify(ctx, opCtx, err)
		}

		return res, nil
	})
	if err != nil {
		if !circuitbreaker.IsRejected(err) {
			e.recordAttempts(ctx, kind, outcomeError, attempts)
			e.logFailure(ctx, kind, attempts, err)
		}

		return nil, err
	}

	e.recordAttempts(ctx, kind, outcomeOK, attempts)

	res, _ := out.(*Result)

	return res, nil
}

func (e *Executor) runWithRetry(ctx context.Context, sql string, args []any) (*Result, int, error) {
	var res *pool.Result

	policy := e.cfg.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.logger.Log(ctx, log.LevelWarn, "db attempt failed, retrying",
			log.Int("attempt", attempt),
			log.Duration("backoff", delay),
			log.String("error", e.errorText(err)),
		)
	}

	attempts, err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		err := e.pool.WithConn(ctx, func(ctx context.Context, conn *pool.PooledConn) error {
			r, qerr := conn.Query(ctx, sql, args...)
			if qerr != nil {
				return &QueryError{Attempt: attempt, Err: qerr}
			}

			res = r

			return nil
		})

		if errors.Is(err, pool.ErrMissingConnectionString) || errors.Is(err, pool.ErrPoolClosed) {
			return backoff.Permanent(err)
		}

		return err
	})
	if err != nil {
		return nil, attempts, err
	}

	return fromPoolResult(res, attempts), attempts, nil
}

// classify separates the caller walking away from the operation budget running out.
func (e *Executor) classify(callerCtx, opCtx context.Context, err error) error {
	if callerErr := callerCtx.Err(); callerErr != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrOperationTimeout, e.cfg.OperationTimeout, err)
	}

	return err
}

func (e *Executor) errorText(err error) string {
	if e.cfg.Production {
		return "database error"
	}

	return err.Error()
}

func (e *Executor) logFailure(ctx context.Context, kind string, attempts int, err error) {
	if errors.Is(err, ErrCanceled) {
		e.logger.Log(ctx, log.LevelDebug, "db call abandoned by caller", log.String("kind", kind))
		return
	}

	log.SafeError(e.logger.With(log.String("kind", kind), log.Int("attempts", attempts)),
		ctx, "db call failed", err, e.cfg.Production)
}

func (e *Executor) recordAttempts(ctx context.Context, kind, outcome string, attempts int) {
	if e.metrics == nil || attempts == 0 {
		return
	}

	_ = e.metrics.RecordQueryAttempts(ctx, kind, outcome, attempts)
}

func (e *Executor) recordFallback(ctx context.Context) {
	if e.metrics == nil {
		return
	}

	_ = e.metrics.RecordQueryFallback(ctx, e.breaker.Name())
}
