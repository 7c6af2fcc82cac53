package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry/metrics"
)

// Status is a point-in-time read of the pool counters.
type Status struct {
	Total   int `json:"total"`
	Idle    int `json:"idle"`
	Waiting int `json:"waiting"`
	Active  int `json:"active"`
	Max     int `json:"max"`
	Min     int `json:"min"`
}

// entry is a physical connection plus the bookkeeping the pool keeps for it.
type entry struct {
	id         string
	conn       Conn
	createdAt  time.Time
	returnedAt time.Time
}

// grant is handed to a queued caller: an idle connection, a free slot to dial
// into, or a terminal error.
type grant struct {
	entry *entry
	slot  bool
	err   error
}

type waiter struct {
	ch   chan grant
	elem *list.Element
}

// Pool is a bounded set of reusable connections shared by concurrent callers.
//
// Invariant: idle + active <= total <= MaxSize, where total also counts slots
// reserved for connections still being dialled.
type Pool struct {
	name      string
	cfg       Config
	connector Connector
	logger    log.Logger
	metrics   *metrics.MetricsFactory
	now       func() time.Time

	mu      sync.Mutex
	idle    []*entry
	total   int
	waiters *list.List
	closed  bool

	events   *dispatcher
	stopOnce sync.Once
	stop     chan struct{}
	stopped  chan struct{}
}

// Option configures a Pool.
type Option func(*Pool)

// WithName labels the pool in logs and metrics.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Pool) {
		p.logger = log.OrNop(logger)
	}
}

// WithMetricsFactory enables pool gauges and acquire latency metrics.
func WithMetricsFactory(factory *metrics.MetricsFactory) Option {
	return func(p *Pool) {
		p.metrics = factory
	}
}

// WithListener registers a lifecycle event listener.
func WithListener(l Listener) Option {
	return func(p *Pool) {
		if l != nil {
			p.events.listeners = append(p.events.listeners, l)
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// New builds a pool and starts its maintainer. No connection is opened until
// the first Acquire or an explicit Warm.
func New(connector Connector, cfg Config, opts ...Option) (*Pool, error) {
	if connector == nil {
		return nil, ErrNilConnector
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		name:      "default",
		cfg:       cfg,
		connector: connector,
		logger:    log.NewNop(),
		now:       time.Now,
		waiters:   list.New(),
		events:    newDispatcher("default", defaultEventBuffer, nil, nil, nil),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.events.pool = p.name
	p.events.logger = p.logger
	p.events.metrics = p.metrics

	p.events.start()
	p.startMaintainer()

	return p, nil
}

// Config returns the effective configuration after defaults.
func (p *Pool) Config() Config {
	return p.cfg
}

// Name returns the pool label.
func (p *Pool) Name() string {
	return p.name
}

// Status reads the counters. Calls without intervening activity return equal values.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.statusLocked()
}

func (p *Pool) statusLocked() Status {
	return Status{
		Total:   p.total,
		Idle:    len(p.idle),
		Waiting: p.waiters.Len(),
		Active:  p.total - len(p.idle),
		Max:     p.cfg.MaxSize,
		Min:     p.cfg.MinSize,
	}
}

// Acquire returns an exclusive connection. It reuses an idle connection,
// dials a new one while below MaxSize, or queues behind earlier callers.
// Queueing and dialling together are bounded by AcquireTimeout; on expiry
// the error is ErrAcquireTimeout. If ctx ends first its error is returned.
//
// Every successful Acquire must be paired with exactly one Release.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	start := p.now()

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	e, err := p.acquire(ctx, acquireCtx)

	p.recordAcquire(ctx, start, err)

	if err != nil {
		return nil, err
	}

	p.emit(EventAcquired, e.id, nil)

	return &PooledConn{pool: p, entry: e}, nil
}

func (p *Pool) acquire(parent, ctx context.Context) (*entry, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		e := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.mu.Unlock()

		return e, nil
	}

	if p.total < p.cfg.MaxSize {
		p.total++
		p.mu.Unlock()

		return p.dial(parent, ctx)
	}

	w := &waiter{ch: make(chan grant, 1)}
	w.elem = p.waiters.PushBack(w)
	status := p.statusLocked()
	p.mu.Unlock()

	p.logger.Log(parent, log.LevelDebug, "db pool exhausted, caller queued",
		log.String("pool", p.name), log.Int("waiting", status.Waiting))

	select {
	case g := <-w.ch:
		return p.takeGrant(parent, ctx, g)
	case <-ctx.Done():
	}

	p.mu.Lock()

	if w.elem != nil {
		p.waiters.Remove(w.elem)
		w.elem = nil
		p.mu.Unlock()

		return nil, p.acquireError(parent)
	}

	p.mu.Unlock()

	// A grant raced with the timeout; pass it on so the slot is not lost.
	p.returnGrant(<-w.ch)

	return nil, p.acquireError(parent)
}

func (p *Pool) takeGrant(parent, ctx context.Context, g grant) (*entry, error) {
	switch {
	case g.err != nil:
		return nil, g.err
	case g.entry != nil:
		return g.entry, nil
	default:
		return p.dial(parent, ctx)
	}
}

func (p *Pool) returnGrant(g grant) {
	switch {
	case g.entry != nil:
		p.put(g.entry)
	case g.slot:
		p.freeSlot()
	}
}

func (p *Pool) acquireError(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}

	return ErrAcquireTimeout
}

// dial opens a connection into a slot the caller already reserved.
func (p *Pool) dial(parent, ctx context.Context) (*entry, error) {
	conn, err := p.connector.Connect(ctx)
	if err != nil {
		p.freeSlot()
		p.emit(EventError, "", err)

		if errors.Is(err, ErrMissingConnectionString) {
			return nil, err
		}

		connErr := &ConnectError{Err: err}
		if ctx.Err() != nil && parent.Err() == nil {
			return nil, fmt.Errorf("%w: %w", ErrAcquireTimeout, connErr)
		}

		return nil, connErr
	}

	now := p.now()
	e := &entry{id: uuid.NewString(), conn: conn, createdAt: now, returnedAt: now}

	p.emit(EventConnected, e.id, nil)

	return e, nil
}

// put returns a healthy connection: to the oldest waiter if any, else to idle.
func (p *Pool) put(e *entry) {
	p.mu.Lock()

	if p.closed {
		p.total--
		p.mu.Unlock()
		p.closeConn(e)

		return
	}

	if w := p.popWaiterLocked(); w != nil {
		w.ch <- grant{entry: e}
		p.mu.Unlock()

		return
	}

	e.returnedAt = p.now()
	p.idle = append(p.idle, e)
	p.mu.Unlock()
}

// freeSlot gives up a reserved slot: to the oldest waiter, who will dial into
// it, or back to the pool.
func (p *Pool) freeSlot() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		if w := p.popWaiterLocked(); w != nil {
			w.ch <- grant{slot: true}
			return
		}
	}

	p.total--
}

func (p *Pool) popWaiterLocked() *waiter {
	front := p.waiters.Front()
	if front == nil {
		return nil
	}

	w, _ := p.waiters.Remove(front).(*waiter)
	w.elem = nil

	return w
}

// discard closes a connection that failed during use and frees its slot.
func (p *Pool) discard(e *entry) {
	p.closeConn(e)
	p.freeSlot()
	p.emit(EventRemoved, e.id, nil)
}

func (p *Pool) closeConn(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCloseTimeout)
	defer cancel()

	if err := e.conn.Close(ctx); err != nil {
		p.emit(EventError, e.id, err)
	}
}

// WithConn acquires a connection, runs fn and releases the connection on
// every exit path, panics included. A non-nil error from fn discards the
// connection instead of returning it to idle.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn *PooledConn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	healthy := false

	defer func() {
		if !healthy {
			conn.markBroken()
		}

		conn.Release()
	}()

	if err := fn(ctx, conn); err != nil {
		return err
	}

	healthy = true

	return nil
}

// Warm opens connections until MinSize are open. Dial failures are returned
// joined; connections that did open are kept.
func (p *Pool) Warm(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}

	need := p.cfg.MinSize - p.total
	if need <= 0 {
		p.mu.Unlock()
		return nil
	}

	p.total += need
	p.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	var errs []error

	for i := 0; i < need; i++ {
		e, err := p.dial(ctx, dialCtx)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		p.put(e)
	}

	return errors.Join(errs...)
}

// Close stops the maintainer, closes idle connections and fails queued
// callers with ErrPoolClosed. Checked-out connections are closed as they are
// released. Close is idempotent.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil
	}

	p.closed = true

	idle := p.idle
	p.idle = nil
	p.total -= len(idle)

	for w := p.popWaiterLocked(); w != nil; w = p.popWaiterLocked() {
		w.ch <- grant{err: ErrPoolClosed}
	}

	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })

	var errs []error

	for _, e := range idle {
		if err := e.conn.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close connection %s: %w", e.id, err))
		}

		p.emit(EventRemoved, e.id, nil)
	}

	select {
	case <-p.stopped:
	case <-ctx.Done():
	}

	p.events.stop(ctx)

	p.logger.Log(ctx, log.LevelInfo, "db pool closed", log.String("pool", p.name))

	return errors.Join(errs...)
}

func (p *Pool) emit(kind EventKind, connID string, err error) {
	ev := Event{Kind: kind, ConnID: connID, Time: p.now(), Status: p.Status(), Err: err}

	if !p.events.emit(ev) && kind == EventError {
		// Errors are never silently lost even when listeners lag.
		p.logger.Log(context.Background(), log.LevelError, "db pool error",
			log.String("pool", p.name), log.String("error", sanitizeSensitiveError(err)))
	}
}

func (p *Pool) recordAcquire(ctx context.Context, start time.Time, err error) {
	if p.metrics == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, ErrAcquireTimeout) {
			outcome = "timeout"
		}
	}

	_ = p.metrics.RecordAcquireDuration(ctx, p.name, p.now().Sub(start).Milliseconds(), outcome)
}
