package health

import (
	"context"
	"errors"
	"time"

	"github.com/salespulse/lib-dbguard/dbguard/circuitbreaker"
	constant "github.com/salespulse/lib-dbguard/dbguard/constants"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/pool"
)

// DefaultPingTimeout bounds the liveness round-trip.
const DefaultPingTimeout = 2 * time.Second

var (
	// ErrNilPool is returned by NewChecker when no pool is given.
	ErrNilPool = errors.New("health: pool is nil")
	// ErrNilBreaker is returned by NewChecker when no breaker is given.
	ErrNilBreaker = errors.New("health: breaker is nil")
)

// PoolReader is the part of *pool.Pool the checker needs.
type PoolReader interface {
	Status() pool.Status
	WithConn(ctx context.Context, fn func(ctx context.Context, conn *pool.PooledConn) error) error
}

// BreakerReader is the part of *circuitbreaker.Breaker the checker needs.
type BreakerReader interface {
	Snapshot() circuitbreaker.Snapshot
}

// PoolStatus is the pool section of the health document.
type PoolStatus struct {
	Total   int `json:"total"`
	Idle    int `json:"idle"`
	Waiting int `json:"waiting"`
}

// BreakerState is the circuit section of the health document.
type BreakerState struct {
	State circuitbreaker.State `json:"state"`
	Stats circuitbreaker.Stats `json:"stats"`
}

// DB groups the database fields of the health document.
type DB struct {
	Connected bool         `json:"connected"`
	Pool      PoolStatus   `json:"pool"`
	Circuit   BreakerState `json:"circuit"`
}

// Report is the health document.
type Report struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DB        DB        `json:"db"`
}

// Checker answers health queries.
type Checker struct {
	pool        PoolReader
	breaker     BreakerReader
	pingTimeout time.Duration
	logger      log.Logger
	now         func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithPingTimeout overrides DefaultPingTimeout. Non-positive values are ignored.
func WithPingTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Checker) {
		c.logger = log.OrNop(logger)
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

// NewChecker builds a checker over p and b.
func NewChecker(p PoolReader, b BreakerReader, opts ...Option) (*Checker, error) {
	if p == nil {
		return nil, ErrNilPool
	}

	if b == nil {
		return nil, ErrNilBreaker
	}

	c := &Checker{
		pool:        p,
		breaker:     b,
		pingTimeout: DefaultPingTimeout,
		logger:      log.NewNop(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// PoolStatus returns the pool counters.
func (c *Checker) PoolStatus() PoolStatus {
	s := c.pool.Status()

	return PoolStatus{Total: s.Total, Idle: s.Idle, Waiting: s.Waiting}
}

// BreakerState returns the breaker state and its window statistics.
func (c *Checker) BreakerState() BreakerState {
	snap := c.breaker.Snapshot()

	return BreakerState{State: snap.State, Stats: snap.Stats}
}

// Ping runs the liveness query on a pooled connection, bypassing the breaker,
// so raw connectivity is reported independently of degraded mode.
func (c *Checker) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	return c.pool.WithConn(ctx, func(ctx context.Context, conn *pool.PooledConn) error {
		_, err := conn.Query(ctx, constant.LivenessQuery)
		return err
	})
}

// Report assembles the health document. Pool and circuit are read before the
// liveness query so they show the state application traffic left behind. A
// failed liveness query is reported as db.connected=false, not as an error;
// an error means the document itself could not be built.
func (c *Checker) Report(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	poolStatus := c.PoolStatus()
	circuit := c.BreakerState()
	connected := true

	if err := c.Ping(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		connected = false

		c.logger.Log(ctx, log.LevelWarn, "db liveness probe failed", log.Err(err))
	}

	return &Report{
		Status:    constant.HealthStatusOK,
		Timestamp: c.now().UTC(),
		DB: DB{
			Connected: connected,
			Pool:      poolStatus,
			Circuit:   circuit,
		},
	}, nil
}
