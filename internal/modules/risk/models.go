// Package risk provides historical risk metrics and variance decomposition
// for portfolio return series.
package risk

// Metrics aggregates the historical risk measures of a single return series.
// VaR and CVaR are return-space thresholds (negative numbers are losses);
// the monetary equivalents live in MonetaryMetrics.
type Metrics struct {
	VaR                  float64 `json:"var"`
	CVaR                 float64 `json:"cvar"`
	Volatility           float64 `json:"volatility"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	Confidence           float64 `json:"confidence"`
	Observations         int     `json:"observations"`
}

// MonetaryMetrics expresses VaR/CVaR as currency amounts against a portfolio value
type MonetaryMetrics struct {
	VaRAmount      float64 `json:"var_amount"`
	CVaRAmount     float64 `json:"cvar_amount"`
	PortfolioValue float64 `json:"portfolio_value"`
	Confidence     float64 `json:"confidence"`
}

// Contribution is one asset's share of portfolio variance (Euler allocation)
type Contribution struct {
	Symbol  string  `json:"symbol"`
	Weight  float64 `json:"weight"`
	Percent float64 `json:"percent"`
}

// Decomposition carries the variance decomposition for a set of assets.
// Contributions are ordered by price matrix column and their percents sum to 100.
type Decomposition struct {
	Contributions     []Contribution `json:"contributions"`
	PortfolioVariance float64        `json:"portfolio_variance"`
}

// Percentages returns the decomposition as a symbol-indexed map
func (d *Decomposition) Percentages() map[string]float64 {
	out := make(map[string]float64, len(d.Contributions))
	for _, c := range d.Contributions {
		out[c.Symbol] = c.Percent
	}
	return out
}

// CorrelationMatrix pairs symbol labels with a symmetric correlation table.
// Diagonal entries are exactly 1; off-diagonal entries are within [-1, 1].
type CorrelationMatrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

// AverageOffDiagonal returns the mean of the upper-triangle correlations.
// Returns 0 for a single-asset matrix.
func (c *CorrelationMatrix) AverageOffDiagonal() float64 {
	n := len(c.Symbols)
	if n < 2 {
		return 0
	}

	sum := 0.0
	count := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += c.Values[i][j]
			count++
		}
	}

	return sum / float64(count)
}

// StrongestPair returns the most correlated pair of distinct symbols.
// ok is false for a single-asset matrix.
func (c *CorrelationMatrix) StrongestPair() (a, b string, value float64, ok bool) {
	n := len(c.Symbols)
	if n < 2 {
		return "", "", 0, false
	}

	best := -2.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if c.Values[i][j] > best {
				best = c.Values[i][j]
				a, b = c.Symbols[i], c.Symbols[j]
			}
		}
	}

	return a, b, best, true
}

// AssetVolatility is the per-asset return volatility, aligned to matrix columns
type AssetVolatility struct {
	Symbol     string  `json:"symbol"`
	Volatility float64 `json:"volatility"`
}
