package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command names a task the executor knows how to run
type Command string

const (
	CommandCalculate    Command = "calculate"
	CommandProcessData  Command = "processData"
	CommandSimulateWork Command = "simulateWork"
	CommandFibonacci    Command = "fibonacci"
	CommandPrimeNumbers Command = "primeNumbers"
	CommandSortArray    Command = "sortArray"
)

// Commands lists every supported command in announcement order
var Commands = []Command{
	CommandCalculate,
	CommandProcessData,
	CommandSimulateWork,
	CommandFibonacci,
	CommandPrimeNumbers,
	CommandSortArray,
}

// Valid reports whether c is one of the supported commands
func (c Command) Valid() bool {
	for _, known := range Commands {
		if c == known {
			return true
		}
	}
	return false
}

// Request is an inbound message from a host
type Request struct {
	ID      string          `json:"id"`
	Command Command         `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewRequest builds a request, encoding payload as the command data
func NewRequest(id string, command Command, payload interface{}) (Request, error) {
	req := Request{ID: id, Command: command}
	if payload == nil {
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req.Data = data
	return req, nil
}

// Queue task types
const (
	TaskTypePrefix = "executor:"
)

// TaskType returns the asynq task type carrying the given command
func TaskType(c Command) string {
	return TaskTypePrefix + string(c)
}

// CommandFromTaskType extracts the command from an asynq task type
func CommandFromTaskType(taskType string) Command {
	return Command(strings.TrimPrefix(taskType, TaskTypePrefix))
}

// TaskEnvelope is the asynq payload for a queued request
type TaskEnvelope struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SubmitTaskRequest represents the request to queue a task
type SubmitTaskRequest struct {
	ID      string          `json:"id" validate:"omitempty,max=128"`
	Command string          `json:"command" validate:"required,max=64"`
	Data    json.RawMessage `json:"data"`
}

// SubmitTaskResponse is returned once a task has been queued
type SubmitTaskResponse struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Status  string `json:"status"`
	Queue   string `json:"queue"`
	TaskID  string `json:"taskId"`
}

// CancelTaskResponse is returned when an in-flight task was cancelled
type CancelTaskResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Queued task status
const (
	TaskStatusQueued    = "queued"
	TaskStatusCancelled = "cancelled"
)
