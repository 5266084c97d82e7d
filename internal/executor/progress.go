package executor

import "math"

// stride returns the index spacing between progress messages for a run over
// total items, or 0 when the run is too small to report progress at all. The
// spacing truncates, so sizes that do not divide evenly yield uneven ticks.
func stride(total, threshold int) int {
	if total <= threshold {
		return 0
	}
	return total / 10
}

// percent is the truncated share of i over total, in whole percent
func percent(i, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(i) / float64(total) * 100))
}

// ticker decides which loop indexes report progress
type ticker struct {
	every int
}

func newTicker(total, threshold int) ticker {
	return ticker{every: stride(total, threshold)}
}

func (k ticker) due(i int) bool {
	return k.every > 0 && i%k.every == 0
}
