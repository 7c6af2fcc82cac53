package pool

import (
	"context"
	"time"

	"github.com/salespulse/lib-dbguard/dbguard/log"
	"github.com/salespulse/lib-dbguard/dbguard/opentelemetry/metrics"
	"github.com/salespulse/lib-dbguard/dbguard/runtime"
)

// EventKind names a pool lifecycle signal.
type EventKind string

const (
	EventConnected EventKind = "connected"
	EventAcquired  EventKind = "acquired"
	EventReleased  EventKind = "released"
	EventRemoved   EventKind = "removed"
	EventError     EventKind = "error"
)

// Event is an advisory lifecycle signal. Status is the pool state right after
// the change that produced the event.
type Event struct {
	Kind   EventKind
	ConnID string
	Time   time.Time
	Status Status
	Err    error
}

// Listener receives events on the pool's dispatcher goroutine. A slow
// listener delays later events but never Acquire or Release.
type Listener func(Event)

type dispatcher struct {
	pool      string
	events    chan Event
	done      chan struct{}
	stopped   chan struct{}
	listeners []Listener
	logger    log.Logger
	metrics   *metrics.MetricsFactory
}

func newDispatcher(pool string, buffer int, listeners []Listener, logger log.Logger, factory *metrics.MetricsFactory) *dispatcher {
	return &dispatcher{
		pool:      pool,
		events:    make(chan Event, buffer),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		listeners: listeners,
		logger:    logger,
		metrics:   factory,
	}
}

// emit never blocks; the event is dropped when the buffer is full.
func (d *dispatcher) emit(ev Event) bool {
	select {
	case d.events <- ev:
		return true
	default:
		return false
	}
}

func (d *dispatcher) start() {
	runtime.SafeGoWithContextAndComponent(context.Background(), d.logger, "pool", "event_dispatcher", runtime.KeepRunning,
		func(ctx context.Context) {
			defer close(d.stopped)

			for {
				select {
				case ev := <-d.events:
					d.deliver(ctx, ev)
				case <-d.done:
					d.drain(ctx)
					return
				}
			}
		})
}

func (d *dispatcher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.events:
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (d *dispatcher) stop(ctx context.Context) {
	close(d.done)

	select {
	case <-d.stopped:
	case <-ctx.Done():
	}
}

func (d *dispatcher) deliver(ctx context.Context, ev Event) {
	d.logEvent(ctx, ev)

	if d.metrics != nil {
		_ = d.metrics.RecordPoolEvent(ctx, d.pool, string(ev.Kind))
		_ = d.metrics.RecordPoolStats(ctx, d.pool, metrics.PoolStats{
			Total:   ev.Status.Total,
			Idle:    ev.Status.Idle,
			Waiting: ev.Status.Waiting,
		})
	}

	for _, l := range d.listeners {
		d.callListener(ctx, l, ev)
	}
}

func (d *dispatcher) callListener(ctx context.Context, l Listener, ev Event) {
	defer runtime.RecoverAndLogWithContext(ctx, d.logger, "pool", "event_listener")

	l(ev)
}

func (d *dispatcher) logEvent(ctx context.Context, ev Event) {
	fields := []log.Field{
		log.String("pool", d.pool),
		log.String("conn_id", ev.ConnID),
		log.Int("total", ev.Status.Total),
		log.Int("idle", ev.Status.Idle),
		log.Int("waiting", ev.Status.Waiting),
	}

	switch ev.Kind {
	case EventError:
		d.logger.Log(ctx, log.LevelError, "db pool error", append(fields, log.String("error", sanitizeSensitiveError(ev.Err)))...)
	case EventConnected:
		d.logger.Log(ctx, log.LevelDebug, "db client connected", fields...)
	case EventAcquired:
		d.logger.Log(ctx, log.LevelDebug, "db client acquired", fields...)
	case EventReleased:
		d.logger.Log(ctx, log.LevelDebug, "db client released", fields...)
	case EventRemoved:
		d.logger.Log(ctx, log.LevelDebug, "db client removed", fields...)
	}
}
