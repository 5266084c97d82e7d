package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/makeasinger/compute-worker/internal/model"
	"github.com/makeasinger/compute-worker/internal/sorting"
)

func sortArray(t *Task, data json.RawMessage) error {
	var p model.SortArrayPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	values, err := decodeArray(p.Array)
	if err != nil {
		return err
	}

	algorithm := p.Algorithm
	if algorithm == "" {
		algorithm = model.DefaultSortAlgorithm
	}

	start := time.Now()
	sorted := sortWith(algorithm)(values)
	elapsed := float64(time.Since(start).Nanoseconds()) / 1e6

	t.Succeed(sorted, model.Fields{
		"algorithm":      algorithm,
		"originalLength": len(values),
		"executionTime":  fmt.Sprintf("%.2fms", elapsed),
	})
	return nil
}

func sortWith(algorithm string) func([]float64) []float64 {
	switch algorithm {
	case model.AlgorithmQuick:
		return sorting.Quick[float64]
	case model.AlgorithmMerge:
		return sorting.Merge[float64]
	case model.AlgorithmBubble:
		return sorting.Bubble[float64]
	default:
		return sorting.Native[float64]
	}
}

// decodeArray accepts only a JSON array of numbers
func decodeArray(raw json.RawMessage) ([]float64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, typeInvalid("array must be an array")
	}

	var values []float64
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, typeInvalid("array must contain only numbers")
	}
	return values, nil
}
