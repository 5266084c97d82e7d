package executor

import (
	"fmt"
	"runtime/debug"

	"github.com/makeasinger/compute-worker/internal/model"
)

const (
	readyMessage     = "Worker is ready to process tasks"
	rejectionMessage = "Unhandled rejection"
)

func (e *Executor) announceReady() {
	e.logger.WithField("commands", len(e.router.Commands())).Info("executor ready")
	e.emit(model.Response{
		ID:                model.ReadyID,
		Status:            model.StatusReady,
		SupportedCommands: e.router.Commands(),
		Message:           readyMessage,
	})
}

// Fatal reports a failure that belongs to no request. The response carries the
// system id and the failure's stack, or the caller's stack when err has none.
// It is safe to call from any goroutine.
func (e *Executor) Fatal(err error) {
	stack := stackOf(err)
	if stack == "" {
		stack = string(debug.Stack())
	}

	systemFaults.WithLabelValues(channelFatal).Inc()
	e.logger.WithError(err).Error("system fault")
	e.emit(model.Response{
		ID:        model.SystemID,
		Status:    model.StatusError,
		Error:     err.Error(),
		ErrorType: string(KindSystemFault),
		Stack:     stack,
	})
}

// Reject reports an asynchronous failure nobody was waiting on. It is safe to
// call from any goroutine.
func (e *Executor) Reject(reason interface{}) {
	systemFaults.WithLabelValues(channelRejection).Inc()
	e.logger.WithField("reason", fmt.Sprint(reason)).Error("unhandled rejection")
	e.emit(model.Response{
		ID:        model.SystemID,
		Status:    model.StatusError,
		Error:     rejectionMessage,
		ErrorType: string(KindSystemFault),
		Reason:    fmt.Sprint(reason),
	})
}

// Go runs fn in its own goroutine. A returned error or a panic is reported
// through Reject.
func (e *Executor) Go(fn func() error) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				e.Reject(rec)
			}
		}()
		if err := fn(); err != nil {
			e.Reject(err)
		}
	}()
}
