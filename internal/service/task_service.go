package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/makeasinger/compute-worker/internal/model"
)

const maxRetry = 3

var (
	// ErrUnknownCommand is returned when a submission names no supported command
	ErrUnknownCommand = errors.New("unknown command")

	// ErrTaskNotFound is returned when no cancellable task has the given id
	ErrTaskNotFound = errors.New("task not found")
)

// Enqueuer puts tasks on the queue. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Canceller stops in-flight tasks. *executor.Executor satisfies it.
type Canceller interface {
	Cancel(id string) (bool, error)
}

// TaskService queues executor requests and cancels running ones
type TaskService struct {
	queue     Enqueuer
	canceller Canceller
	queueName string
}

func NewTaskService(queue Enqueuer, canceller Canceller, queueName string) *TaskService {
	return &TaskService{
		queue:     queue,
		canceller: canceller,
		queueName: queueName,
	}
}

// Submit queues a request for the worker server. An empty id is replaced
// with a fresh one.
func (s *TaskService) Submit(ctx context.Context, req *model.SubmitTaskRequest) (*model.SubmitTaskResponse, error) {
	command := model.Command(req.Command)
	if !command.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, req.Command)
	}

	id := req.ID
	if id == "" {
		id = model.NewTaskID()
	}

	payload, err := json.Marshal(model.TaskEnvelope{ID: id, Data: req.Data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(model.TaskType(command), payload)
	info, err := s.queue.EnqueueContext(ctx, task,
		asynq.Queue(s.queueName),
		asynq.MaxRetry(maxRetry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.SubmitTaskResponse{
		ID:      id,
		Command: string(command),
		Status:  model.TaskStatusQueued,
		Queue:   info.Queue,
		TaskID:  info.ID,
	}, nil
}

// Cancel stops an in-flight simulateWork task
func (s *TaskService) Cancel(ctx context.Context, id string) (*model.CancelTaskResponse, error) {
	found, err := s.canceller.Cancel(id)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel task: %w", err)
	}
	if !found {
		return nil, ErrTaskNotFound
	}

	return &model.CancelTaskResponse{
		ID:     id,
		Status: model.TaskStatusCancelled,
	}, nil
}

// Commands lists the commands that can be submitted
func (s *TaskService) Commands() []model.Command {
	return model.Commands
}
