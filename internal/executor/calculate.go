package executor

import (
	"encoding/json"
	"math"

	"github.com/makeasinger/compute-worker/internal/model"
)

var operations = map[string]func([]float64) float64{
	model.OperationSum: sum,
	model.OperationAverage: func(numbers []float64) float64 {
		// empty input yields NaN, reported as a result rather than a fault
		return sum(numbers) / float64(len(numbers))
	},
	model.OperationMax: func(numbers []float64) float64 {
		return fold(numbers, math.Inf(-1), math.Max)
	},
	model.OperationMin: func(numbers []float64) float64 {
		return fold(numbers, math.Inf(1), math.Min)
	},
	model.OperationMultiply: func(numbers []float64) float64 {
		return fold(numbers, 1, func(acc, v float64) float64 { return acc * v })
	},
}

func calculate(t *Task, data json.RawMessage) error {
	var p model.CalculatePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	op, ok := operations[p.Operation]
	if !ok {
		return invalidArgument("Unknown operation: %s", p.Operation)
	}
	if err := validate.Struct(p); err != nil {
		return typeInvalid("numbers must be an array of numbers")
	}

	t.Succeed(op(p.Numbers), model.Fields{"operation": p.Operation})
	return nil
}

func sum(numbers []float64) float64 {
	return fold(numbers, 0, func(acc, v float64) float64 { return acc + v })
}

func fold(numbers []float64, seed float64, fn func(acc, v float64) float64) float64 {
	acc := seed
	for _, v := range numbers {
		acc = fn(acc, v)
	}
	return acc
}
