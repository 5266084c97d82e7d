package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTaskID generates an identifier for a queued request submitted without one
func NewTaskID() string {
	return uuid.New().String()
}

// NewSessionID generates a sortable identifier for an executor session
func NewSessionID() string {
	return ulid.Make().String()
}
