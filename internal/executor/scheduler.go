package executor

import (
	"fmt"
	"sync"
	"time"
)

// Handle controls a repeating step registered with the executor's scheduler
type Handle struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
}

// Cancel stops the schedule. A step already queued on the event loop is
// skipped.
func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
	}
}

// Cancelled reports whether Cancel has been called
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// every runs step on the event loop after each interval for as long as step
// returns true. The next interval starts only once the previous step has
// returned, so a step that panics is never run again.
func (e *Executor) every(interval time.Duration, step func() bool) *Handle {
	h := &Handle{}
	e.arm(h, interval, step)
	return h
}

func (e *Executor) arm(h *Handle, interval time.Duration, step func() bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelled {
		return
	}

	h.timer = time.AfterFunc(interval, func() {
		err := e.post(message{step: func() {
			if h.Cancelled() {
				return
			}
			if step() {
				e.arm(h, interval, step)
			}
		}})
		if err != nil && !h.Cancelled() {
			e.Reject(fmt.Errorf("scheduled step dropped: %w", err))
		}
	})
}
