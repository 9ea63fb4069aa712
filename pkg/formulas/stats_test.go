package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanAndStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 5.0, Mean(data), 1e-12)
	// Sample (N-1) vs population (N) divisors
	assert.InDelta(t, 2.13809, StdDev(data), 1e-4)
	assert.InDelta(t, 2.0, PopStdDev(data), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, PopStdDev(nil))
}

func TestAnnualizedVolatility(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.015, -0.005, 0.01}
	vol := AnnualizedVolatility(returns)

	assert.InDelta(t, StdDev(returns)*math.Sqrt(252), vol, 1e-12)
	assert.Equal(t, 0.0, AnnualizedVolatility(nil))
}

func TestCalculateReturns(t *testing.T) {
	prices := []float64{100, 110, 99}
	returns := CalculateReturns(prices)

	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)

	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	inv := []float64{10, 8, 6, 4, 2}

	assert.InDelta(t, 1.0, Correlation(x, y), 1e-12)
	assert.InDelta(t, -1.0, Correlation(x, inv), 1e-12)
	assert.Equal(t, 0.0, Correlation(x, []float64{1, 2}))
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	data := []float64{1, 2, 3, 4}

	// rank = 0.25 * 3 = 0.75 -> 1 + 0.75*(2-1)
	assert.InDelta(t, 1.75, Percentile(data, 25), 1e-12)
	assert.InDelta(t, 2.5, Percentile(data, 50), 1e-12)
	assert.InDelta(t, 1.0, Percentile(data, 0), 1e-12)
	assert.InDelta(t, 4.0, Percentile(data, 100), 1e-12)

	decade := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	// rank = 0.05 * 9 = 0.45 -> 10 + 0.45*10
	assert.InDelta(t, 14.5, Percentile(decade, 5), 1e-12)
	assert.InDelta(t, 95.5, Percentile(decade, 95), 1e-12)
}

func TestPercentile_UnsortedInputAndMedian(t *testing.T) {
	data := []float64{9, 1, 5, 3, 7}

	assert.InDelta(t, 5.0, Median(data), 1e-12)
	// Input must not be reordered in place
	assert.Equal(t, []float64{9, 1, 5, 3, 7}, data)

	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestCalculateMaxDrawdown(t *testing.T) {
	// Cumulative path: 1.1, 0.55, 0.66 against a running peak of 1.1
	returns := []float64{0.1, -0.5, 0.2}
	assert.InDelta(t, -0.5, CalculateMaxDrawdown(returns), 1e-12)

	// A series that never declines has no drawdown
	assert.Equal(t, 0.0, CalculateMaxDrawdown([]float64{0.01, 0.02, 0.03}))
	assert.Equal(t, 0.0, CalculateMaxDrawdown(nil))
}
