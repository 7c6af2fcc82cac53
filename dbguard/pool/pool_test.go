//go:build unit

package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, connector Connector, cfg Config, opts ...Option) *Pool {
	t.Helper()

	p, err := New(connector, cfg, opts...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return p
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilConnector)

	_, err = New(&fakeConnector{}, Config{MaxSize: 2, MinSize: 3})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&fakeConnector{}, Config{MaxSize: 2, MinSize: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &fakeConnector{}, Config{})
	cfg := p.Config()

	assert.Equal(t, DefaultMaxSize, cfg.MaxSize)
	assert.Equal(t, DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, DefaultAcquireTimeout, cfg.AcquireTimeout)
	assert.Equal(t, DefaultReapInterval, cfg.ReapInterval)
}

func TestAcquireUpToMaxDoesNotQueue(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &fakeConnector{}, testConfig(5, 0))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns []*PooledConn
	)

	for i := 0; i < 5; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			c, err := p.Acquire(context.Background())
			assert.NoError(t, err)

			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}()
	}

	wg.Wait()

	status := p.Status()
	assert.Equal(t, 5, status.Total)
	assert.Equal(t, 0, status.Idle)
	assert.Equal(t, 0, status.Waiting)
	assert.Equal(t, 5, status.Active)

	for _, c := range conns {
		c.Release()
	}

	assert.Equal(t, 5, p.Status().Idle)
}

func TestExcessAcquiresQueueUntilRelease(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &fakeConnector{}, Config{
		MaxSize: 10, MinSize: 2, AcquireTimeout: 5 * time.Second, ReapInterval: time.Hour,
	})

	acquired := make(chan *PooledConn, 12)

	for i := 0; i < 12; i++ {
		go func() {
			c, err := p.Acquire(context.Background())
			if err == nil {
				acquired <- c
			}
		}()
	}

	held := make([]*PooledConn, 0, 10)
	for i := 0; i < 10; i++ {
		select {
		case c := <-acquired:
			held = append(held, c)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d connections acquired", len(held))
		}
	}

	require.Eventually(t, func() bool { return p.Status().Waiting == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 10, p.Status().Total)

	held[0].Release()

	select {
	case c := <-acquired:
		held = append(held, c)
	case <-time.After(time.Second):
		t.Fatal("release did not unblock a queued caller")
	}

	require.Eventually(t, func() bool { return p.Status().Waiting == 1 }, time.Second, 5*time.Millisecond)

	select {
	case <-acquired:
		t.Fatal("one release unblocked more than one caller")
	case <-time.After(50 * time.Millisecond):
	}

	for _, c := range held {
		c.Release()
	}

	<-acquired
}

func TestReleasedConnectionIsReused(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{}
	p := newTestPool(t, connector, testConfig(3, 0))

	c1, err := p.Acquire(context.Background())
	require.NoError(t, err)

	id := c1.ID()
	c1.Release()
	c1.Release()

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer c2.Release()

	assert.Equal(t, id, c2.ID())
	assert.Equal(t, 1, connector.dialled())
}

func TestFailedConnectionIsDiscarded(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{queryErr: errBoom}
	p := newTestPool(t, connector, testConfig(3, 0))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = c.Query(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, errBoom)

	c.Release()

	status := p.Status()
	assert.Equal(t, 0, status.Total)
	assert.Equal(t, 0, status.Idle)
	assert.Equal(t, 1, connector.closedCount())

	_, err = c.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrConnReleased)
}

func TestWithConnReleasesOnEveryPath(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{}
	p := newTestPool(t, connector, testConfig(2, 0))

	err := p.WithConn(context.Background(), func(ctx context.Context, c *PooledConn) error {
		_, err := c.Query(ctx, "SELECT 1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Status().Idle)

	sentinel := errors.New("constraint violation")
	err = p.WithConn(context.Background(), func(context.Context, *PooledConn) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 0, p.Status().Total, "connection used by a failing callback must not return to idle")

	assert.Panics(t, func() {
		_ = p.WithConn(context.Background(), func(context.Context, *PooledConn) error { panic("handler bug") })
	})
	assert.Equal(t, 0, p.Status().Total)
	assert.Equal(t, 0, p.Status().Active)
}

func TestAcquireTimeout(t *testing.T) {
	t.Parallel()

	cfg := testConfig(1, 0)
	cfg.AcquireTimeout = 30 * time.Millisecond
	p := newTestPool(t, &fakeConnector{}, cfg)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	start := time.Now()
	_, err = p.Acquire(context.Background())

	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, p.Status().Waiting)

	held.Release()

	c, err := p.Acquire(context.Background())
	require.NoError(t, err, "slot must survive a timed-out waiter")
	c.Release()
}

func TestAcquireHonoursCallerCancellation(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &fakeConnector{}, testConfig(1, 0))

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAcquireTimeout)
}

func TestDialFailureFreesSlot(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{dialErr: errors.New("dial tcp 10.0.0.1:5432: connect: connection refused")}
	p := newTestPool(t, connector, testConfig(2, 0))

	_, err := p.Acquire(context.Background())

	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, 0, p.Status().Total)
}

func TestMissingConnectionStringFailsImmediately(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, NewPgxConnector("  "), testConfig(2, 0))

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrMissingConnectionString)
	assert.Equal(t, 0, p.Status().Total)
}

func TestDiscardHandsSlotToWaiter(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{}
	p := newTestPool(t, connector, testConfig(1, 0))

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	got := make(chan *PooledConn, 1)

	go func() {
		c, err := p.Acquire(context.Background())
		if err == nil {
			got <- c
		}
	}()

	require.Eventually(t, func() bool { return p.Status().Waiting == 1 }, time.Second, 5*time.Millisecond)

	held.Discard()

	select {
	case c := <-got:
		assert.NotEqual(t, held.ID(), c.ID())
		assert.Equal(t, 1, p.Status().Total)
		c.Release()
	case <-time.After(time.Second):
		t.Fatal("waiter was not given the freed slot")
	}

	assert.Equal(t, 2, connector.dialled())
}

func TestReapIdleKeepsMinSize(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	connector := &fakeConnector{}
	p := newTestPool(t, connector, testConfig(5, 2), withClock(clock.Now))

	conns := make([]*PooledConn, 0, 4)
	for i := 0; i < 4; i++ {
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)

		conns = append(conns, c)
	}

	for _, c := range conns {
		c.Release()
	}

	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, p.reapIdle(), "nothing has been idle past the timeout yet")

	clock.Advance(6 * time.Second)
	assert.Equal(t, 2, p.reapIdle())

	status := p.Status()
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 2, status.Idle)
	assert.Equal(t, 2, connector.closedCount())

	clock.Advance(time.Minute)
	assert.Equal(t, 0, p.reapIdle())
}

func TestReapIdleDisabled(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cfg := testConfig(2, 0)
	cfg.IdleTimeout = -1
	p := newTestPool(t, &fakeConnector{}, cfg, withClock(clock.Now))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c.Release()

	clock.Advance(time.Hour)
	assert.Equal(t, 0, p.reapIdle())
}

func TestWarmOpensMinSize(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{}
	p := newTestPool(t, connector, testConfig(10, 2))

	require.NoError(t, p.Warm(context.Background()))
	require.NoError(t, p.Warm(context.Background()))

	status := p.Status()
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 2, status.Idle)
	assert.Equal(t, 2, connector.dialled())
}

func TestStatusIsIdempotent(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &fakeConnector{}, testConfig(4, 1))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release()

	assert.Equal(t, p.Status(), p.Status())
}

func TestCloseFailsWaitersAndClosesIdle(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{}
	p, err := New(connector, testConfig(1, 0))
	require.NoError(t, err)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	waitErr := make(chan error, 1)

	go func() {
		_, err := p.Acquire(context.Background())
		waitErr <- err
	}()

	require.Eventually(t, func() bool { return p.Status().Waiting == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Close(context.Background()))
	require.NoError(t, p.Close(context.Background()))

	assert.ErrorIs(t, <-waitErr, ErrPoolClosed)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	held.Release()

	assert.Equal(t, 1, connector.closedCount())
	assert.Equal(t, 0, p.Status().Total)
}

func TestListenersReceiveLifecycleEvents(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		kinds []EventKind
	)

	listener := func(ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	}

	panicking := func(Event) { panic("listener bug") }

	p, err := New(&fakeConnector{}, testConfig(2, 0), WithListener(panicking), WithListener(listener), WithName("reports"))
	require.NoError(t, err)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	c.Release()

	require.NoError(t, p.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []EventKind{EventConnected, EventAcquired, EventReleased, EventRemoved}, kinds)
	assert.Equal(t, "reports", p.Name())
}

func TestSanitizeSensitiveError(t *testing.T) {
	t.Parallel()

	err := errors.New("failed to connect to postgres://app:s3cret@db:5432/sales password=s3cret")

	got := sanitizeSensitiveError(err)

	assert.NotContains(t, got, "s3cret")
	assert.Contains(t, got, "://***@")
	assert.Equal(t, "", sanitizeSensitiveError(nil))

	connErr := &ConnectError{Err: err}
	assert.NotContains(t, connErr.Error(), "s3cret")
	assert.ErrorIs(t, connErr, err)
}
