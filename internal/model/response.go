package model

import (
	"encoding/json"
	"math"
	"time"
)

// Status tags a response
type Status string

const (
	StatusReady    Status = "ready"
	StatusProgress Status = "progress"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// Reserved response identifiers
const (
	ReadyID    = "ready-token"
	SystemID   = "system"
	FallbackID = "unknown"
)

// TimestampFormat is the textual form of Response.Timestamp
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Fields carries handler-specific values flattened into the response object
type Fields map[string]interface{}

// Response is an outbound message to a host. Handler-specific values live in
// Fields and are written at the top level of the JSON object.
type Response struct {
	ID                string
	Status            Status
	Command           Command
	Progress          int
	Result            interface{}
	Error             string
	ErrorType         string
	Stack             string
	Reason            string
	SupportedCommands []Command
	Message           string
	Fields            Fields
	Timestamp         time.Time
}

// Terminal reports whether the response ends a request's lifecycle
func (r Response) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}

// Field returns a handler-specific value
func (r Response) Field(key string) interface{} {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[key]
}

// MarshalJSON flattens the response into a single object
func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+6)
	for k, v := range r.Fields {
		out[k] = wireValue(v)
	}

	out["id"] = r.ID
	out["status"] = r.Status
	out["timestamp"] = r.Timestamp.UTC().Format(TimestampFormat)

	switch r.Status {
	case StatusReady:
		out["supportedCommands"] = r.SupportedCommands
		out["message"] = r.Message
	case StatusProgress:
		out["progress"] = r.Progress
	case StatusSuccess:
		out["command"] = r.Command
		out["result"] = wireValue(r.Result)
	case StatusError:
		out["error"] = r.Error
		if r.ErrorType != "" {
			out["errorType"] = r.ErrorType
		}
		if r.Stack != "" {
			out["stack"] = r.Stack
		}
		if r.Reason != "" {
			out["reason"] = r.Reason
		}
		if r.Command != "" {
			out["command"] = r.Command
		}
	}

	return json.Marshal(out)
}

// wireValue replaces non-finite floats with nil since JSON cannot carry them
func wireValue(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return n
	case []float64:
		if !hasNonFinite(n) {
			return n
		}
		out := make([]interface{}, len(n))
		for i, f := range n {
			out[i] = wireValue(f)
		}
		return out
	default:
		return v
	}
}

func hasNonFinite(s []float64) bool {
	for _, f := range s {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// Now returns the emission instant used for response timestamps
func Now() time.Time {
	return time.Now().UTC()
}
