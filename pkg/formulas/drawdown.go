package formulas

// CalculateMaxDrawdown calculates the maximum peak-to-trough decline of the
// compounded growth path implied by a daily return series.
//
// Formula:
//   cumulative_t = prod(1 + r_i) for i <= t
//   drawdown_t   = cumulative_t / running_peak_t - 1
//   max drawdown = min(drawdown_t)
//
// Returns:
//   Maximum drawdown as a signed fraction, <= 0 (0 for a series that never declines)
func CalculateMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	cumulative := 1.0
	peak := 0.0
	maxDrawdown := 0.0

	for i, r := range returns {
		cumulative *= 1 + r
		if i == 0 || cumulative > peak {
			peak = cumulative
		}

		drawdown := cumulative/peak - 1
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}
