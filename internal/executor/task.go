package executor

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/makeasinger/compute-worker/internal/model"
)

// Task is the per-request handle a Handler reports through. It emits any
// number of progress responses followed by exactly one terminal response;
// anything reported after the terminal is dropped.
//
// A Task belongs to the event loop and must not be used from other
// goroutines.
type Task struct {
	ID      string
	Command model.Command

	exec     *Executor
	log      *logrus.Entry
	started  time.Time
	detached bool
	done     bool
}

func (e *Executor) newTask(req model.Request) *Task {
	id := req.ID
	if id == "" {
		id = model.FallbackID
	}
	return &Task{
		ID:      id,
		Command: req.Command,
		exec:    e,
		log:     e.logger.WithFields(logrus.Fields{"id": id, "command": req.Command}),
		started: time.Now(),
	}
}

// Done reports whether the terminal response has been emitted
func (t *Task) Done() bool {
	return t.done
}

// Progress emits an intermediate response carrying percent and fields
func (t *Task) Progress(percent int, fields model.Fields) {
	if t.done {
		t.log.Warn("progress reported after terminal response")
		return
	}
	progressMessages.WithLabelValues(commandLabel(t.Command)).Inc()
	t.exec.emit(model.Response{
		ID:       t.ID,
		Status:   model.StatusProgress,
		Progress: percent,
		Fields:   fields,
	})
}

// Succeed emits the terminal success response
func (t *Task) Succeed(result interface{}, fields model.Fields) {
	if !t.finish(statusSucceeded) {
		return
	}
	defer t.exec.wg.Done()
	t.exec.emit(model.Response{
		ID:      t.ID,
		Status:  model.StatusSuccess,
		Command: t.Command,
		Result:  result,
		Fields:  fields,
	})
}

// Fail emits the terminal error response for err
func (t *Task) Fail(err error) {
	if !t.finish(statusFailed) {
		return
	}
	defer t.exec.wg.Done()

	resp := model.Response{
		ID:        t.ID,
		Status:    model.StatusError,
		Error:     err.Error(),
		ErrorType: string(KindOf(err)),
		Stack:     stackOf(err),
	}
	if t.Command.Valid() {
		resp.Command = t.Command
	}
	t.log.WithError(err).WithField("error_type", resp.ErrorType).Info("task failed")
	t.exec.emit(resp)
}

// detach marks the task as finishing outside the current dispatch, so the
// router does not treat a nil return without a terminal as a fault.
func (t *Task) detach() {
	t.detached = true
}

func (t *Task) finish(status string) bool {
	if t.done {
		t.log.WithField("status", status).Warn("duplicate terminal response dropped")
		return false
	}
	t.done = true

	label := commandLabel(t.Command)
	tasksTotal.WithLabelValues(label, status).Inc()
	taskDuration.WithLabelValues(label).Observe(time.Since(t.started).Seconds())
	t.log.WithField("elapsed", time.Since(t.started).String()).Debug("task finished")
	return true
}
