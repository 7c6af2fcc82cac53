// Package pool implements a bounded database connection pool.
//
// A Pool hands out exclusive PooledConn handles, opening connections lazily
// up to MaxSize and queueing callers FIFO once every slot is in use. Released
// connections go straight to the longest-waiting caller or back to the idle
// set; a connection that failed during use is closed instead of reused. A
// background maintainer closes connections idle longer than IdleTimeout while
// keeping at least MinSize open.
//
// Lifecycle events (connected, acquired, released, removed, error) are
// delivered asynchronously and dropped when listeners fall behind, so they
// never slow down Acquire or Release.
package pool
