package executor

import (
	"encoding/json"
	"math"

	"github.com/makeasinger/compute-worker/internal/model"
)

const processDataThreshold = 10

func processData(t *Task, data json.RawMessage) error {
	var p model.ProcessDataPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	if err := validate.Struct(p); err != nil {
		return typeInvalid("dataset must be an array of numbers")
	}

	transform := transformFor(p.Transform, p.Dataset)
	total := len(p.Dataset)
	tick := newTicker(total, processDataThreshold)

	out := make([]float64, total)
	for i, v := range p.Dataset {
		out[i] = round4(transform(v))
		if tick.due(i) {
			t.Progress(percent(i, total), model.Fields{
				"processed": i + 1,
				"total":     total,
			})
		}
	}

	t.Succeed(out, model.Fields{
		"originalLength": total,
		"transform":      p.Transform,
	})
	return nil
}

// transformFor returns the element-wise function for name. Unknown names
// leave values unchanged.
func transformFor(name string, dataset []float64) func(float64) float64 {
	switch name {
	case model.TransformDouble:
		return func(x float64) float64 { return x * 2 }
	case model.TransformSquare:
		return func(x float64) float64 { return x * x }
	case model.TransformSqrt:
		return func(x float64) float64 { return math.Sqrt(math.Abs(x)) }
	case model.TransformNormalize:
		peak := 0.0
		for _, v := range dataset {
			peak = math.Max(peak, math.Abs(v))
		}
		return func(x float64) float64 {
			if peak == 0 {
				return 0
			}
			return x / peak
		}
	default:
		return func(x float64) float64 { return x }
	}
}

// round4 rounds to four decimals with halves going toward positive infinity
func round4(v float64) float64 {
	return math.Floor(v*1e4+0.5) / 1e4
}
