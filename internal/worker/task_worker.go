package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/makeasinger/compute-worker/internal/model"
)

// Executor is the part of the executor the worker drives
type Executor interface {
	Submit(req model.Request) error
	Cancel(id string) (bool, error)
}

// TaskWorker runs queued tasks on the shared executor. Each ProcessTask call
// blocks until the executor emits the task's terminal response.
type TaskWorker struct {
	exec    Executor
	tracker *Tracker
	log     *logrus.Entry
}

// NewTaskWorker creates a new task worker. tracker must be the sink the
// executor reports to.
func NewTaskWorker(exec Executor, tracker *Tracker, logger *logrus.Entry) *TaskWorker {
	return &TaskWorker{
		exec:    exec,
		tracker: tracker,
		log:     logger.WithField("component", "task_worker"),
	}
}

// Register routes every executor task type to the worker. Types under the
// executor prefix that name no command still reach the executor, which
// answers them with an unknown-command error.
func (w *TaskWorker) Register(mux *asynq.ServeMux) {
	for _, c := range model.Commands {
		mux.Handle(model.TaskType(c), w)
	}
	mux.Handle(model.TaskTypePrefix, w)
}

// ProcessTask handles one queued request
func (w *TaskWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var env model.TaskEnvelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	if env.ID == "" {
		env.ID = model.NewTaskID()
	}

	req := model.Request{
		ID:      env.ID,
		Command: model.CommandFromTaskType(t.Type()),
		Data:    env.Data,
	}
	log := w.log.WithFields(logrus.Fields{"id": req.ID, "command": req.Command})

	done, release := w.tracker.Await(req.ID)
	defer release()

	if err := w.exec.Submit(req); err != nil {
		return fmt.Errorf("failed to submit task %s: %w", req.ID, err)
	}
	log.Debug("task submitted")

	select {
	case resp := <-done:
		if resp.Status == model.StatusError {
			log.WithField("error", resp.Error).Info("task failed")
			return fmt.Errorf("task %s failed: %s: %w", req.ID, resp.Error, asynq.SkipRetry)
		}
		log.Info("task completed")
		return nil

	case <-ctx.Done():
		found, err := w.exec.Cancel(req.ID)
		if err != nil {
			log.WithError(err).Warn("failed to cancel task")
		}
		if found {
			log.Info("task cancelled")
			return fmt.Errorf("task %s cancelled: %w: %w", req.ID, ctx.Err(), asynq.SkipRetry)
		}
		return ctx.Err()
	}
}
