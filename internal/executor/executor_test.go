package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/compute-worker/internal/model"
)

type recorder struct {
	mu        sync.Mutex
	responses []model.Response
}

func (r *recorder) Emit(resp model.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
}

func (r *recorder) all() []model.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Response(nil), r.responses...)
}

func (r *recorder) byID(id string) []model.Response {
	var out []model.Response
	for _, resp := range r.all() {
		if resp.ID == id {
			out = append(out, resp)
		}
	}
	return out
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// startExecutor runs an executor until the test ends and waits for the ready
// response.
func startExecutor(t *testing.T, opts ...Option) (*Executor, *recorder, func()) {
	t.Helper()

	rec := &recorder{}
	e, err := New(rec, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.all()) > 0 }, time.Second, time.Millisecond)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			require.NoError(t, <-done)
		})
	}
	t.Cleanup(stop)
	return e, rec, stop
}

func execute(t *testing.T, e *Executor, rec *recorder, id string, cmd model.Command, payload interface{}) []model.Response {
	t.Helper()

	req, err := model.NewRequest(id, cmd, payload)
	require.NoError(t, err)
	require.NoError(t, e.Submit(req))
	e.Wait()
	return rec.byID(id)
}

func terminal(t *testing.T, responses []model.Response) model.Response {
	t.Helper()
	require.NotEmpty(t, responses)
	last := responses[len(responses)-1]
	require.True(t, last.Terminal(), "last response is %s", last.Status)
	for _, r := range responses[:len(responses)-1] {
		require.Equal(t, model.StatusProgress, r.Status)
	}
	return last
}

func assertProgressOrdered(t *testing.T, responses []model.Response) {
	t.Helper()
	prev := -1
	for _, r := range responses {
		if r.Status != model.StatusProgress {
			continue
		}
		assert.GreaterOrEqual(t, r.Progress, prev)
		assert.LessOrEqual(t, r.Progress, 100)
		prev = r.Progress
	}
}

func TestNewRejectsNilSink(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestRunAnnouncesReadyFirst(t *testing.T) {
	e, rec, _ := startExecutor(t)

	ready := rec.all()[0]
	assert.Equal(t, model.ReadyID, ready.ID)
	assert.Equal(t, model.StatusReady, ready.Status)
	assert.Equal(t, model.Commands, ready.SupportedCommands)
	assert.Equal(t, readyMessage, ready.Message)
	assert.False(t, ready.Timestamp.IsZero())
	assert.Equal(t, model.Commands, e.Commands())
}

func TestRunTwice(t *testing.T) {
	e, _, _ := startExecutor(t)
	assert.ErrorIs(t, e.Run(context.Background()), ErrAlreadyRunning)
}

func TestUnknownCommand(t *testing.T) {
	e, rec, _ := startExecutor(t)

	responses := execute(t, e, rec, "x", "bogus", map[string]int{"a": 1})
	require.Len(t, responses, 1)
	assert.Equal(t, model.StatusError, responses[0].Status)
	assert.Equal(t, "Unknown command: bogus", responses[0].Error)
	assert.Equal(t, string(KindUnknownCommand), responses[0].ErrorType)
	assert.Empty(t, responses[0].Command)
}

func TestMissingIDUsesFallback(t *testing.T) {
	e, rec, _ := startExecutor(t)

	responses := execute(t, e, rec, "", "bogus", nil)
	require.Len(t, responses, 0)
	fallback := rec.byID(model.FallbackID)
	require.Len(t, fallback, 1)
	assert.Equal(t, model.StatusError, fallback[0].Status)
}

func TestHandlerPanicBecomesRuntimeFault(t *testing.T) {
	handlers := DefaultHandlers()
	handlers[model.CommandCalculate] = func(t *Task, data json.RawMessage) error {
		var m map[string]int
		m["boom"] = 1
		return nil
	}
	e, rec, _ := startExecutor(t, WithHandlers(handlers))

	responses := execute(t, e, rec, "p", model.CommandCalculate, nil)
	require.Len(t, responses, 1)
	assert.Equal(t, string(KindRuntimeFault), responses[0].ErrorType)
	assert.Contains(t, responses[0].Error, "nil map")
	assert.NotEmpty(t, responses[0].Stack)

	// the loop keeps serving requests
	ok := execute(t, e, rec, "after", model.CommandFibonacci, model.FibonacciPayload{N: intPtr(3)})
	assert.Equal(t, model.StatusSuccess, terminal(t, ok).Status)
}

func TestHandlerWithoutResultFails(t *testing.T) {
	handlers := DefaultHandlers()
	handlers[model.CommandSortArray] = func(t *Task, data json.RawMessage) error { return nil }
	e, rec, _ := startExecutor(t, WithHandlers(handlers))

	responses := execute(t, e, rec, "silent", model.CommandSortArray, nil)
	require.Len(t, responses, 1)
	assert.Equal(t, model.StatusError, responses[0].Status)
}

func TestDuplicateTerminalDropped(t *testing.T) {
	handlers := DefaultHandlers()
	handlers[model.CommandCalculate] = func(t *Task, data json.RawMessage) error {
		t.Succeed(1.0, nil)
		t.Succeed(2.0, nil)
		t.Progress(50, nil)
		return errors.New("late failure")
	}
	e, rec, _ := startExecutor(t, WithHandlers(handlers))

	responses := execute(t, e, rec, "dup", model.CommandCalculate, nil)
	require.Len(t, responses, 1)
	assert.Equal(t, 1.0, responses[0].Result)
}

func TestFatalFromScheduledStep(t *testing.T) {
	e, rec, _ := startExecutor(t)

	require.NoError(t, e.post(message{step: func() { panic("step exploded") }}))
	require.Eventually(t, func() bool { return len(rec.byID(model.SystemID)) == 1 }, time.Second, time.Millisecond)

	fault := rec.byID(model.SystemID)[0]
	assert.Equal(t, model.StatusError, fault.Status)
	assert.Equal(t, "step exploded", fault.Error)
	assert.Equal(t, string(KindSystemFault), fault.ErrorType)
	assert.NotEmpty(t, fault.Stack)
}

func TestGoReportsRejections(t *testing.T) {
	e, rec, _ := startExecutor(t)

	e.Go(func() error { return errors.New("lost write") })
	e.Go(func() error { panic("lost panic") })

	require.Eventually(t, func() bool { return len(rec.byID(model.SystemID)) == 2 }, time.Second, time.Millisecond)

	reasons := []string{}
	for _, r := range rec.byID(model.SystemID) {
		assert.Equal(t, rejectionMessage, r.Error)
		assert.Equal(t, string(KindSystemFault), r.ErrorType)
		reasons = append(reasons, r.Reason)
	}
	assert.ElementsMatch(t, []string{"lost write", "lost panic"}, reasons)
}

func TestSubmitAfterStop(t *testing.T) {
	e, _, stop := startExecutor(t)
	stop()

	req, err := model.NewRequest("late", model.CommandFibonacci, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, e.Submit(req), ErrStopped)

	_, err = e.Cancel("late")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestNewRouterValidatesTable(t *testing.T) {
	_, err := NewRouter(DefaultHandlers())
	require.NoError(t, err)

	missing := DefaultHandlers()
	delete(missing, model.CommandPrimeNumbers)
	_, err = NewRouter(missing)
	assert.ErrorContains(t, err, "no handler")

	nilHandler := DefaultHandlers()
	nilHandler[model.CommandFibonacci] = nil
	_, err = NewRouter(nilHandler)
	assert.ErrorContains(t, err, "nil handler")

	extra := DefaultHandlers()
	extra["bogus"] = calculate
	_, err = NewRouter(extra)
	assert.ErrorContains(t, err, "unsupported command")

	_, err = New(&recorder{}, WithHandlers(missing))
	assert.Error(t, err)
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, invalidArgument("bad %d", 1), ErrInvalidArgument)
	assert.ErrorIs(t, typeInvalid("bad"), ErrTypeInvalid)
	assert.NotErrorIs(t, typeInvalid("bad"), ErrInvalidArgument)
	assert.Equal(t, KindRuntimeFault, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknownCommand, KindOf(unknownCommand("x")))

	wrapped := runtimeFault(io.EOF, []byte("trace"))
	assert.ErrorIs(t, wrapped, io.EOF)
	assert.Equal(t, "trace", stackOf(wrapped))
}

func TestStrideAndPercent(t *testing.T) {
	tests := []struct {
		total, threshold, want int
	}{
		{10, 10, 0},
		{11, 10, 1},
		{25, 10, 2},
		{100, 100, 0},
		{1000, 100, 100},
		{100000, 100, 10000},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, stride(tc.total, tc.threshold), "stride(%d, %d)", tc.total, tc.threshold)
	}

	assert.Equal(t, 0, percent(0, 25))
	assert.Equal(t, 96, percent(24, 25))
	assert.Equal(t, 100, percent(5, 5))
	assert.Equal(t, 0, percent(3, 0))
	// truncation, 29/100*100 is 28.999... in floating point
	assert.Equal(t, 28, percent(29, 100))

	tick := newTicker(25, 10)
	assert.True(t, tick.due(0))
	assert.False(t, tick.due(1))
	assert.True(t, tick.due(24))
	assert.False(t, newTicker(5, 10).due(0))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
