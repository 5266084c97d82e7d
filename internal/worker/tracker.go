package worker

import (
	"sync"

	"github.com/makeasinger/compute-worker/internal/executor"
	"github.com/makeasinger/compute-worker/internal/model"
)

// Tracker is an executor.Sink that forwards every response to next and hands
// terminal responses to whoever is awaiting that id.
type Tracker struct {
	next executor.Sink

	mu      sync.Mutex
	waiters map[string]map[chan model.Response]struct{}
}

// NewTracker wraps next, which may be nil
func NewTracker(next executor.Sink) *Tracker {
	return &Tracker{
		next:    next,
		waiters: make(map[string]map[chan model.Response]struct{}),
	}
}

// Emit implements executor.Sink
func (tr *Tracker) Emit(resp model.Response) {
	if tr.next != nil {
		tr.next.Emit(resp)
	}
	if !resp.Terminal() {
		return
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	for ch := range tr.waiters[resp.ID] {
		ch <- resp
		delete(tr.waiters[resp.ID], ch)
	}
	if len(tr.waiters[resp.ID]) == 0 {
		delete(tr.waiters, resp.ID)
	}
}

// Await registers interest in the next terminal response for id. The
// returned release func must be called once the caller stops waiting.
func (tr *Tracker) Await(id string) (<-chan model.Response, func()) {
	ch := make(chan model.Response, 1)

	tr.mu.Lock()
	if tr.waiters[id] == nil {
		tr.waiters[id] = make(map[chan model.Response]struct{})
	}
	tr.waiters[id][ch] = struct{}{}
	tr.mu.Unlock()

	release := func() {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		if waiters, ok := tr.waiters[id]; ok {
			delete(waiters, ch)
			if len(waiters) == 0 {
				delete(tr.waiters, id)
			}
		}
	}
	return ch, release
}
