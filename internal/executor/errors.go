package executor

import (
	"errors"
	"fmt"
)

// Kind classifies a failure reported in an error response
type Kind string

const (
	KindUnknownCommand  Kind = "UnknownCommand"
	KindInvalidArgument Kind = "InvalidArgument"
	KindTypeInvalid     Kind = "TypeInvalid"
	KindRuntimeFault    Kind = "RuntimeFault"
	KindSystemFault     Kind = "SystemFault"
)

// TaskError is a failure raised while dispatching or running a task
type TaskError struct {
	Kind    Kind
	Message string
	Stack   string
	Err     error
}

func (e *TaskError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrInvalidArgument)
// holds for every invalid-argument failure.
func (e *TaskError) Is(target error) bool {
	t, ok := target.(*TaskError)
	if !ok || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is
var (
	ErrUnknownCommand  = &TaskError{Kind: KindUnknownCommand}
	ErrInvalidArgument = &TaskError{Kind: KindInvalidArgument}
	ErrTypeInvalid     = &TaskError{Kind: KindTypeInvalid}
	ErrRuntimeFault    = &TaskError{Kind: KindRuntimeFault}
	ErrSystemFault     = &TaskError{Kind: KindSystemFault}
)

var (
	// ErrStopped is returned once the executor's event loop has exited
	ErrStopped = errors.New("executor stopped")

	// ErrCancelled terminates a simulation cancelled through Executor.Cancel
	ErrCancelled = errors.New("task cancelled")

	// ErrAlreadyRunning is returned by a second call to Run
	ErrAlreadyRunning = errors.New("executor already running")
)

func unknownCommand(command string) error {
	return &TaskError{Kind: KindUnknownCommand, Message: fmt.Sprintf("Unknown command: %s", command)}
}

func invalidArgument(format string, args ...interface{}) error {
	return &TaskError{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func typeInvalid(format string, args ...interface{}) error {
	return &TaskError{Kind: KindTypeInvalid, Message: fmt.Sprintf(format, args...)}
}

func runtimeFault(recovered interface{}, stack []byte) error {
	te := &TaskError{Kind: KindRuntimeFault, Stack: string(stack)}
	if err, ok := recovered.(error); ok {
		te.Err = err
		te.Message = err.Error()
	} else {
		te.Message = fmt.Sprint(recovered)
	}
	return te
}

// KindOf reports the failure class of err. Errors that carry no kind are
// runtime faults.
func KindOf(err error) Kind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindRuntimeFault
}

func stackOf(err error) string {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Stack
	}
	return ""
}
