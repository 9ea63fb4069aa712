package formulas

import (
	"math"
	"sort"
)

// Percentile calculates the pct-th percentile (0-100) of a dataset using
// linear interpolation between closest ranks.
//
// Formula:
//   rank = pct/100 * (N-1)
//   result = sorted[floor(rank)] + frac(rank) * (sorted[floor(rank)+1] - sorted[floor(rank)])
//
// Returns 0 for an empty dataset.
func Percentile(data []float64, pct float64) float64 {
	if len(data) == 0 {
		return 0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	frac := rank - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}

	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Median returns the 50th percentile of a dataset
func Median(data []float64) float64 {
	return Percentile(data, 50)
}
