//go:build unit

package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeConn struct {
	n        int
	queryErr error
	closed   atomic.Bool
	queries  atomic.Int32
}

func (c *fakeConn) Query(_ context.Context, sql string, _ ...any) (*Result, error) {
	c.queries.Add(1)

	if c.queryErr != nil {
		return nil, c.queryErr
	}

	return &Result{Columns: []string{"sql"}, Rows: []map[string]any{{"sql": sql}}}, nil
}

func (c *fakeConn) Ping(context.Context) error {
	return c.queryErr
}

func (c *fakeConn) Close(context.Context) error {
	c.closed.Store(true)
	return nil
}

type fakeConnector struct {
	mu      sync.Mutex
	conns   []*fakeConn
	dialErr error
	// queryErr is installed on every connection dialled after it is set.
	queryErr error
	gate     chan struct{}
}

func (f *fakeConnector) Connect(ctx context.Context) (Conn, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dialErr != nil {
		return nil, f.dialErr
	}

	c := &fakeConn{n: len(f.conns) + 1, queryErr: f.queryErr}
	f.conns = append(f.conns, c)

	return c, nil
}

func (f *fakeConnector) dialled() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.conns)
}

func (f *fakeConnector) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, c := range f.conns {
		if c.closed.Load() {
			n++
		}
	}

	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

var errBoom = errors.New("server closed the connection unexpectedly")

func testConfig(maxSize, minSize int) Config {
	return Config{
		MaxSize:        maxSize,
		MinSize:        minSize,
		IdleTimeout:    10 * time.Second,
		AcquireTimeout: time.Second,
		ReapInterval:   time.Hour,
	}
}
