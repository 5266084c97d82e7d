package executor

import (
	"encoding/json"

	"github.com/makeasinger/compute-worker/internal/model"
)

const fibonacciThreshold = 10

func fibonacci(t *Task, data json.RawMessage) error {
	var p model.FibonacciPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	n := model.DefaultFibonacciN
	if p.N != nil {
		n = *p.N
	}
	if err := validate.Var(n, "min=0,max=1000"); err != nil {
		return invalidArgument("n must be between 0 and %d", model.MaxFibonacciN)
	}

	tick := newTicker(n, fibonacciThreshold)
	seq := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		seq = append(seq, fibAt(i))
		if tick.due(i) {
			t.Progress(percent(i, n), model.Fields{
				"current": i,
				"total":   n,
			})
		}
	}

	t.Succeed(seq, model.Fields{
		"length":   len(seq),
		"nthValue": seq[n],
	})
	return nil
}

// fibAt computes the i-th term from scratch by linear recurrence
func fibAt(i int) float64 {
	if i < 2 {
		return float64(i)
	}
	a, b := 0.0, 1.0
	for k := 2; k <= i; k++ {
		a, b = b, a+b
	}
	return b
}
