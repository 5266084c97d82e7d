package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/makeasinger/compute-worker/internal/model"
)

// DefaultInboxSize bounds how many requests and scheduled steps may wait for
// the event loop before Submit blocks.
const DefaultInboxSize = 256

// Sink receives every response the executor emits, in emission order.
// Emit is never called concurrently for a single executor.
type Sink interface {
	Emit(resp model.Response)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(resp model.Response)

func (f SinkFunc) Emit(resp model.Response) { f(resp) }

// message is one unit of work for the event loop: either an inbound request
// or a callback scheduled by the step scheduler.
type message struct {
	req  *model.Request
	step func()
}

// Executor runs tasks on a single event loop and reports their progress and
// results to a Sink.
type Executor struct {
	router    *Router
	sink      Sink
	logger    *logrus.Entry
	inboxSize int
	handlers  map[model.Command]Handler

	inbox   chan message
	quit    chan struct{}
	mu      sync.RWMutex
	closed  bool
	running atomic.Bool
	emitMu  sync.Mutex
	wg      sync.WaitGroup

	// active is owned by the event loop
	active map[*simulation]struct{}
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger used for executor diagnostics
func WithLogger(logger *logrus.Entry) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithInboxSize sets the event loop queue capacity
func WithInboxSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.inboxSize = n
		}
	}
}

// WithHandlers replaces the command table. The table is validated by New.
func WithHandlers(handlers map[model.Command]Handler) Option {
	return func(e *Executor) { e.handlers = handlers }
}

// New creates an executor that reports to sink. The executor does nothing
// until Run is called.
func New(sink Sink, opts ...Option) (*Executor, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	e := &Executor{
		sink:      sink,
		logger:    logrus.NewEntry(logrus.StandardLogger()),
		inboxSize: DefaultInboxSize,
		handlers:  DefaultHandlers(),
		quit:      make(chan struct{}),
		active:    make(map[*simulation]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	router, err := NewRouter(e.handlers)
	if err != nil {
		return nil, fmt.Errorf("invalid command table: %w", err)
	}
	e.router = router
	e.inbox = make(chan message, e.inboxSize)

	return e, nil
}

// Commands returns the supported command names in announcement order
func (e *Executor) Commands() []model.Command {
	return e.router.Commands()
}

// Run announces readiness and then processes requests and scheduled steps
// one at a time until ctx is cancelled. Requests still waiting, and
// simulations still in flight, each receive a terminal error on shutdown.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	e.announceReady()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case msg := <-e.inbox:
			e.handle(msg)
		}
	}
}

// Submit queues a request for the event loop. It may be called from any
// goroutine and returns ErrStopped once the loop has exited.
func (e *Executor) Submit(req model.Request) error {
	e.wg.Add(1)
	if err := e.post(message{req: &req}); err != nil {
		e.wg.Done()
		return err
	}
	return nil
}

// Wait blocks until every request accepted by Submit has emitted its terminal
// response. It must not race with Submit calls.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Cancel stops an in-flight simulateWork task with the given id. The task
// emits a terminal error. It reports whether a task was found.
func (e *Executor) Cancel(id string) (bool, error) {
	found := make(chan bool, 1)
	err := e.post(message{step: func() {
		found <- e.cancelSimulations(id)
	}})
	if err != nil {
		return false, err
	}

	select {
	case ok := <-found:
		return ok, nil
	case <-e.quit:
		select {
		case ok := <-found:
			return ok, nil
		default:
			return false, ErrStopped
		}
	}
}

func (e *Executor) post(msg message) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrStopped
	}

	select {
	case e.inbox <- msg:
		return nil
	case <-e.quit:
		return ErrStopped
	}
}

// handle runs one message on the event loop. A panic escaping a request is
// already converted by the router, so anything caught here came from a
// scheduled step and is reported on the fatal channel.
func (e *Executor) handle(msg message) {
	defer func() {
		if rec := recover(); rec != nil {
			e.Fatal(&TaskError{
				Kind:    KindSystemFault,
				Message: fmt.Sprint(rec),
				Stack:   string(debug.Stack()),
			})
		}
	}()

	if msg.req != nil {
		task := e.newTask(*msg.req)
		task.log.Debug("dispatching task")
		e.router.Dispatch(task, msg.req.Data)
		return
	}
	msg.step()
}

func (e *Executor) shutdown() {
	for sim := range e.active {
		sim.handle.Cancel()
		e.untrack(sim)
		sim.task.Fail(ErrStopped)
	}

	close(e.quit)
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	for {
		select {
		case msg := <-e.inbox:
			if msg.req != nil {
				e.newTask(*msg.req).Fail(ErrStopped)
			}
		default:
			e.logger.Debug("executor stopped")
			return
		}
	}
}

func (e *Executor) track(sim *simulation) {
	e.active[sim] = struct{}{}
	activeSimulations.Inc()
}

func (e *Executor) untrack(sim *simulation) {
	if _, ok := e.active[sim]; !ok {
		return
	}
	delete(e.active, sim)
	activeSimulations.Dec()
}

func (e *Executor) cancelSimulations(id string) bool {
	found := false
	for sim := range e.active {
		if sim.task.ID != id {
			continue
		}
		found = true
		sim.handle.Cancel()
		e.untrack(sim)
		sim.task.Fail(ErrCancelled)
	}
	return found
}

// emit stamps and delivers a response. Lifecycle channels may call it from
// outside the event loop, hence the lock.
func (e *Executor) emit(resp model.Response) {
	resp.Timestamp = model.Now()

	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.sink.Emit(resp)
}
