package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/go-playground/validator/v10"

	"github.com/makeasinger/compute-worker/internal/model"
)

// Handler implements one command. It reports through t and returns an error
// instead of emitting its own error response; the router converts the error
// into the task's single terminal response.
type Handler func(t *Task, data json.RawMessage) error

var validate = validator.New()

// DefaultHandlers returns the built-in command table
func DefaultHandlers() map[model.Command]Handler {
	return map[model.Command]Handler{
		model.CommandCalculate:    calculate,
		model.CommandProcessData:  processData,
		model.CommandSimulateWork: simulateWork,
		model.CommandFibonacci:    fibonacci,
		model.CommandPrimeNumbers: primeNumbers,
		model.CommandSortArray:    sortArray,
	}
}

// Router dispatches requests through a fixed command table
type Router struct {
	handlers map[model.Command]Handler
	commands []model.Command
}

// NewRouter validates handlers against the supported commands. Every command
// must be present with a non-nil handler and no other keys are allowed.
func NewRouter(handlers map[model.Command]Handler) (*Router, error) {
	for c, h := range handlers {
		if !c.Valid() {
			return nil, fmt.Errorf("handler registered for unsupported command %q", c)
		}
		if h == nil {
			return nil, fmt.Errorf("nil handler for command %q", c)
		}
	}

	table := make(map[model.Command]Handler, len(handlers))
	for _, c := range model.Commands {
		h, ok := handlers[c]
		if !ok {
			return nil, fmt.Errorf("no handler for command %q", c)
		}
		table[c] = h
	}

	return &Router{
		handlers: table,
		commands: append([]model.Command(nil), model.Commands...),
	}, nil
}

// Commands returns the routed command names in announcement order
func (r *Router) Commands() []model.Command {
	return append([]model.Command(nil), r.commands...)
}

// Dispatch runs the handler for t.Command. Whatever happens, t ends up with
// exactly one terminal response unless the handler detached it.
func (r *Router) Dispatch(t *Task, data json.RawMessage) {
	h, ok := r.handlers[t.Command]
	if !ok {
		t.Fail(unknownCommand(string(t.Command)))
		return
	}

	if err := invoke(h, t, data); err != nil {
		if !t.Done() {
			t.Fail(err)
			return
		}
		t.log.WithError(err).Warn("handler failed after terminal response")
		return
	}

	if !t.Done() && !t.detached {
		t.Fail(&TaskError{Kind: KindRuntimeFault, Message: "handler returned without a result"})
	}
}

func invoke(h Handler, t *Task, data json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = runtimeFault(rec, debug.Stack())
		}
	}()
	return h(t, data)
}

// decodePayload unmarshals data into v. Absent data leaves v at its zero
// value so handlers apply their defaults.
func decodePayload(data json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return typeInvalid("invalid payload: %v", err)
	}
	return nil
}
