package executor

import (
	"encoding/json"

	"github.com/makeasinger/compute-worker/internal/model"
)

const primesThreshold = 100

func primeNumbers(t *Task, data json.RawMessage) error {
	var p model.PrimeNumbersPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	limit := model.DefaultPrimeLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	if err := validate.Var(limit, "min=2,max=100000"); err != nil {
		return invalidArgument("limit must be between %d and %d", model.MinPrimeLimit, model.MaxPrimeLimit)
	}

	composite := make([]bool, limit+1)
	composite[0], composite[1] = true, true

	tick := newTicker(limit, primesThreshold)
	primes := []int{}
	for i := 2; i <= limit; i++ {
		if !composite[i] {
			primes = append(primes, i)
			for j := i * i; j <= limit; j += i {
				composite[j] = true
			}
		}
		if tick.due(i) {
			t.Progress(percent(i, limit), model.Fields{
				"current":     i,
				"primesFound": len(primes),
			})
		}
	}

	t.Succeed(primes, model.Fields{
		"count": len(primes),
		"limit": limit,
	})
	return nil
}
