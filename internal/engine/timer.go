package engine

import (
	"sync"
	"time"
)

// countdown drives the 1 Hz tick for timed modes. It is owned by the
// engine and is halted when the attempt ends or the screen unmounts so no
// tick outlives the session. A tick already in flight when halt fires is
// discarded by the engine's ended check.
type countdown struct {
	stop     chan struct{}
	stopOnce sync.Once
}

func newCountdown(tick func()) *countdown {
	c := &countdown{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tick()
			case <-c.stop:
				return
			}
		}
	}()
	return c
}

// halt stops the ticking goroutine. Safe to call more than once and safe
// to call while a tick is waiting on the engine lock.
func (c *countdown) halt() {
	c.stopOnce.Do(func() { close(c.stop) })
}
