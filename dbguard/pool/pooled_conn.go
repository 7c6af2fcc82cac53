package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// PooledConn is an exclusive handle on a pooled connection, valid from
// Acquire until Release.
type PooledConn struct {
	pool     *Pool
	entry    *entry
	once     sync.Once
	broken   atomic.Bool
	released atomic.Bool
}

// ID identifies the underlying physical connection across acquisitions.
func (c *PooledConn) ID() string {
	return c.entry.id
}

// Query runs sql on the connection. Any error marks the connection broken so
// Release closes it instead of returning it to idle.
func (c *PooledConn) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	if c.released.Load() {
		return nil, ErrConnReleased
	}

	res, err := c.entry.conn.Query(ctx, sql, args...)
	if err != nil {
		c.markBroken()
		return nil, err
	}

	return res, nil
}

// Ping checks the connection. A failed ping marks it broken.
func (c *PooledConn) Ping(ctx context.Context) error {
	if c.released.Load() {
		return ErrConnReleased
	}

	if err := c.entry.conn.Ping(ctx); err != nil {
		c.markBroken()
		return err
	}

	return nil
}

// Release hands the connection back. Broken connections are closed and their
// slot freed. Release never fails and only the first call has any effect.
func (c *PooledConn) Release() {
	c.once.Do(func() {
		c.released.Store(true)

		if c.broken.Load() {
			c.pool.discard(c.entry)
			return
		}

		c.pool.put(c.entry)
		c.pool.emit(EventReleased, c.entry.id, nil)
	})
}

// Discard closes the connection instead of reusing it.
func (c *PooledConn) Discard() {
	c.markBroken()
	c.Release()
}

func (c *PooledConn) markBroken() {
	c.broken.Store(true)
}
