package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry/metrics"
	"github.com/salespulse/lib-dbguard/dbguard/runtime"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrOpen is returned, wrapped, when a call is rejected because the breaker is open.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrHalfOpenBusy is returned, wrapped, when the half-open trial slots are taken.
	ErrHalfOpenBusy = errors.New("circuit breaker is half-open and a trial call is in flight")
)

// IsRejected reports whether err means the breaker refused to run the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrOpen) || errors.Is(err, ErrHalfOpenBusy)
}

// Breaker is a process-wide circuit breaker around one dependency.
type Breaker struct {
	name    string
	cfg     Config
	cb      *gobreaker.CircuitBreaker[any]
	logger  log.Logger
	metrics *metrics.MetricsFactory
	now     func() time.Time

	isSuccessful func(error) bool
	isExcluded   func(error) bool

	mu         sync.RWMutex
	listeners  []StateChangeListener
	lastChange time.Time

	rejections atomic.Uint64
	fallbacks  atomic.Uint64
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(b *Breaker) {
		b.logger = log.OrNop(logger)
	}
}

// WithMetricsFactory enables transition and execution counters.
func WithMetricsFactory(factory *metrics.MetricsFactory) Option {
	return func(b *Breaker) {
		b.metrics = factory
	}
}

// WithIsSuccessful decides which errors count as failures. By default only a
// nil error is a success.
func WithIsSuccessful(fn func(error) bool) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.isSuccessful = fn
		}
	}
}

// WithIsExcluded leaves matching outcomes out of the statistics. An excluded
// half-open trial neither closes nor reopens the breaker and frees its slot.
func WithIsExcluded(fn func(error) bool) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.isExcluded = fn
		}
	}
}

// WithStateChangeListener registers a listener at construction.
func WithStateChangeListener(l StateChangeListener) Option {
	return func(b *Breaker) {
		if l != nil {
			b.listeners = append(b.listeners, l)
		}
	}
}

// New builds a closed breaker.
func New(name string, cfg Config, opts ...Option) (*Breaker, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Breaker{
		name:         name,
		cfg:          cfg,
		logger:       log.NewNop(),
		now:          time.Now,
		isSuccessful: func(err error) bool { return err == nil },
		isExcluded:   func(error) bool { return false },
	}

	for _, opt := range opts {
		opt(b)
	}

	b.lastChange = b.now()

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    cfg.Window,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.readyToTrip(convertCounts(counts))
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			b.handleStateChange(convertGobreakerState(from), convertGobreakerState(to))
		},
		IsSuccessful: func(err error) bool {
			return b.isSuccessful(err)
		},
		IsExcluded: func(err error) bool {
			return err != nil && b.isExcluded(err)
		},
	})

	b.logger.Log(context.Background(), log.LevelInfo, "circuit breaker created",
		log.String("breaker", name),
		log.Any("error_threshold_percentage", cfg.ErrorThresholdPercentage),
		log.Duration("reset_timeout", cfg.ResetTimeout),
		log.Int64("volume_threshold", int64(cfg.VolumeThreshold)),
	)

	return b, nil
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Config returns the effective configuration.
func (b *Breaker) Config() Config {
	return b.cfg
}

// Execute runs fn through the breaker. When the breaker is open, or half-open
// with its trial slots taken, fn is not called and the error wraps ErrOpen or
// ErrHalfOpenBusy.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		b.rejections.Add(1)
		b.recordExecution(ctx, "rejected")

		return nil, fmt.Errorf("%s: %w", b.name, ErrOpen)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		b.rejections.Add(1)
		b.recordExecution(ctx, "rejected")

		return nil, fmt.Errorf("%s: %w", b.name, ErrHalfOpenBusy)
	case err != nil && b.isExcluded(err):
		b.recordExecution(ctx, "excluded")

		return result, err
	case err != nil:
		b.recordExecution(ctx, "failure")

		return result, err
	}

	b.recordExecution(ctx, "success")

	return result, nil
}

// State returns the current state. An open breaker whose ResetTimeout has
// elapsed reports half-open.
func (b *Breaker) State() State {
	return convertGobreakerState(b.cb.State())
}

// Counts returns the statistics of the current window.
func (b *Breaker) Counts() Counts {
	return convertCounts(b.cb.Counts())
}

// RecordFallback counts a call answered with a degraded result after rejection.
func (b *Breaker) RecordFallback() {
	b.fallbacks.Add(1)
}

// Snapshot reads state and statistics together.
func (b *Breaker) Snapshot() Snapshot {
	state := b.State()
	counts := b.Counts()

	b.mu.RLock()
	lastChange := b.lastChange
	b.mu.RUnlock()

	return Snapshot{
		Name:  b.name,
		State: state,
		Stats: Stats{
			Counts:            counts,
			FailurePercentage: counts.FailurePercentage(),
			Rejections:        b.rejections.Load(),
			Fallbacks:         b.fallbacks.Load(),
			LastStateChange:   lastChange,
		},
	}
}

// IsHealthy reports whether the breaker is closed.
func (b *Breaker) IsHealthy() bool {
	return b.State() == StateClosed
}

// RegisterStateChangeListener adds a listener. Nil is ignored.
func (b *Breaker) RegisterStateChangeListener(l StateChangeListener) {
	if l == nil {
		b.logger.Log(context.Background(), log.LevelWarn, "attempted to register a nil state change listener")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = append(b.listeners, l)
}

// handleStateChange runs under gobreaker's lock: it must not call back into b.cb.
func (b *Breaker) handleStateChange(from, to State) {
	ctx := context.Background()
	fields := []log.Field{
		log.String("breaker", b.name),
		log.String("from", string(from)),
		log.String("to", string(to)),
	}

	switch to {
	case StateOpen:
		b.logger.Log(ctx, log.LevelWarn, "DB circuit opened, calls will fail fast", fields...)
	case StateHalfOpen:
		b.logger.Log(ctx, log.LevelInfo, "DB circuit half-open, trial call allowed", fields...)
	case StateClosed:
		b.logger.Log(ctx, log.LevelInfo, "DB circuit closed", fields...)
	}

	if b.metrics != nil {
		_ = b.metrics.RecordBreakerTransition(ctx, b.name, string(from), string(to))
	}

	b.mu.Lock()
	b.lastChange = b.now()
	listeners := make([]StateChangeListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		runtime.SafeGoWithContextAndComponent(ctx, b.logger, "circuitbreaker", "state_change_listener", runtime.KeepRunning,
			func(context.Context) {
				l.OnStateChange(b.name, from, to)
			})
	}
}

func (b *Breaker) recordExecution(ctx context.Context, outcome string) {
	if b.metrics == nil {
		return
	}

	_ = b.metrics.RecordBreakerExecution(ctx, b.name, outcome)
}
