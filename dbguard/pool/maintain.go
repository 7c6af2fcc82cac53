package pool

import (
	"context"
	"time"

	"github.com/salespulse/lib-dbguard/dbguard/runtime"
)

func (p *Pool) startMaintainer() {
	runtime.SafeGoWithContextAndComponent(context.Background(), p.logger, "pool", "idle_reaper", runtime.KeepRunning,
		func(context.Context) {
			defer close(p.stopped)

			ticker := time.NewTicker(p.cfg.ReapInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					p.reapIdle()
				case <-p.stop:
					return
				}
			}
		})
}

// reapIdle closes connections idle longer than IdleTimeout, oldest first,
// while more than MinSize connections are open.
func (p *Pool) reapIdle() int {
	if p.cfg.IdleTimeout < 0 {
		return 0
	}

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return 0
	}

	now := p.now()

	// idle is a stack: the oldest returns sit at the front.
	var expired []*entry

	for len(p.idle) > 0 && p.total > p.cfg.MinSize {
		oldest := p.idle[0]
		if now.Sub(oldest.returnedAt) <= p.cfg.IdleTimeout {
			break
		}

		p.idle[0] = nil
		p.idle = p.idle[1:]
		p.total--

		expired = append(expired, oldest)
	}

	p.mu.Unlock()

	for _, e := range expired {
		p.closeConn(e)
		p.emit(EventRemoved, e.id, nil)
	}

	return len(expired)
}
