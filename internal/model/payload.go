package model

import "encoding/json"

// Calculate operations
const (
	OperationSum      = "sum"
	OperationAverage  = "average"
	OperationMax      = "max"
	OperationMin      = "min"
	OperationMultiply = "multiply"
)

// ProcessData transforms
const (
	TransformDouble    = "double"
	TransformSquare    = "square"
	TransformSqrt      = "sqrt"
	TransformNormalize = "normalize"
)

// SortArray algorithms
const (
	AlgorithmQuick  = "quick"
	AlgorithmMerge  = "merge"
	AlgorithmBubble = "bubble"
)

// Payload defaults and bounds
const (
	DefaultSimulateDuration = 3000
	DefaultSimulateSteps    = 100
	MaxSimulateDuration     = 24 * 60 * 60 * 1000
	DefaultFibonacciN       = 20
	MaxFibonacciN           = 1000
	DefaultPrimeLimit       = 100
	MinPrimeLimit           = 2
	MaxPrimeLimit           = 100000
	DefaultSortAlgorithm    = AlgorithmQuick
)

// CalculatePayload is the data for the calculate command
type CalculatePayload struct {
	Operation string    `json:"operation"`
	Numbers   []float64 `json:"numbers" validate:"required"`
}

// ProcessDataPayload is the data for the processData command
type ProcessDataPayload struct {
	Dataset   []float64 `json:"dataset" validate:"required"`
	Transform string    `json:"transform"`
}

// SimulateWorkPayload is the data for the simulateWork command
type SimulateWorkPayload struct {
	Duration *float64 `json:"duration"`
	Steps    *int     `json:"steps"`
}

// FibonacciPayload is the data for the fibonacci command
type FibonacciPayload struct {
	N *int `json:"n"`
}

// PrimeNumbersPayload is the data for the primeNumbers command
type PrimeNumbersPayload struct {
	Limit *int `json:"limit"`
}

// SortArrayPayload is the data for the sortArray command. Array stays raw so
// the handler can tell a missing or non-sequence value from an empty one.
type SortArrayPayload struct {
	Array     json.RawMessage `json:"array"`
	Algorithm string          `json:"algorithm"`
}
