package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/compute-worker/internal/model"
)

type recordingQueue struct {
	task *asynq.Task
	opts []asynq.Option
}

func (q *recordingQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	q.task = task
	q.opts = opts
	return &asynq.TaskInfo{ID: "t-1", Queue: "compute"}, nil
}

type fixedCanceller bool

func (f fixedCanceller) Cancel(id string) (bool, error) { return bool(f), nil }

func TestSubmitEnqueuesOnConfiguredQueue(t *testing.T) {
	queue := &recordingQueue{}
	svc := NewTaskService(queue, fixedCanceller(false), "compute")

	res, err := svc.Submit(context.Background(), &model.SubmitTaskRequest{
		ID:      "abc",
		Command: "sortArray",
		Data:    json.RawMessage(`{"array":[2,1]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.ID)
	assert.Equal(t, "compute", res.Queue)
	assert.Equal(t, "executor:sortArray", queue.task.Type())

	var queueName string
	for _, opt := range queue.opts {
		if opt.Type() == asynq.QueueOpt {
			queueName = opt.Value().(string)
		}
	}
	assert.Equal(t, "compute", queueName)
}

func TestSubmitUnknownCommand(t *testing.T) {
	queue := &recordingQueue{}
	svc := NewTaskService(queue, fixedCanceller(false), "compute")

	_, err := svc.Submit(context.Background(), &model.SubmitTaskRequest{Command: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Nil(t, queue.task)
}

func TestCancelNotFound(t *testing.T) {
	svc := NewTaskService(&recordingQueue{}, fixedCanceller(false), "compute")
	_, err := svc.Cancel(context.Background(), "x")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	res, err := NewTaskService(&recordingQueue{}, fixedCanceller(true), "compute").Cancel(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, res.Status)
}
