package risk

import (
	"math"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Service computes historical risk metrics and variance decomposition
type Service struct {
	log zerolog.Logger
}

// NewService creates a new risk service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "risk").Logger(),
	}
}

// VaR returns the historical Value at Risk of a return series.
//
// Formula: VaR = percentile(returns, (1 - confidence) * 100)
//
// The result is a return-space loss threshold (negative or near zero for
// typical portfolios). Uses linear-interpolated percentile semantics over
// the empirical sample; no distributional assumption is made.
func (s *Service) VaR(returns []float64, confidence float64) (float64, error) {
	if err := validateConfidence(confidence); err != nil {
		return 0, err
	}
	if len(returns) < 2 {
		return 0, &domain.InsufficientDataError{Op: "var", Needed: 2, Got: len(returns)}
	}

	return formulas.Percentile(returns, (1-confidence)*100), nil
}

// CVaR returns the Conditional Value at Risk (expected shortfall): the mean
// of all returns at or below the VaR threshold.
func (s *Service) CVaR(returns []float64, confidence float64) (float64, error) {
	threshold, err := s.VaR(returns, confidence)
	if err != nil {
		return 0, err
	}

	sum := 0.0
	count := 0
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}

	// The VaR threshold is itself a sample percentile, so the tail can only
	// be empty in degenerate samples. Fail rather than return NaN.
	if count == 0 {
		return 0, &domain.DegenerateSampleError{Op: "cvar"}
	}

	return sum / float64(count), nil
}

// Volatility returns the sample standard deviation of a return series,
// multiplied by sqrt(252) when annualize is set.
func (s *Service) Volatility(returns []float64, annualize bool) (float64, error) {
	if len(returns) < 2 {
		return 0, &domain.InsufficientDataError{Op: "volatility", Needed: 2, Got: len(returns)}
	}

	if annualize {
		return formulas.AnnualizedVolatility(returns), nil
	}
	return formulas.StdDev(returns), nil
}

// MaxDrawdown returns the maximum peak-to-trough decline of the compounded
// return series. Result is <= 0.
func (s *Service) MaxDrawdown(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, &domain.InsufficientDataError{Op: "max_drawdown", Needed: 2, Got: len(returns)}
	}

	return formulas.CalculateMaxDrawdown(returns), nil
}

// MonetaryVaR converts VaR to a currency amount: abs(VaR) * value.
// Always non-negative.
func (s *Service) MonetaryVaR(value float64, returns []float64, confidence float64) (float64, error) {
	if value < 0 {
		return 0, &domain.InvalidParameterError{Name: "value", Value: value, Reason: "must be non-negative"}
	}

	v, err := s.VaR(returns, confidence)
	if err != nil {
		return 0, err
	}

	return math.Abs(v) * value, nil
}

// MonetaryCVaR converts CVaR to a currency amount: abs(CVaR) * value.
// Always non-negative.
func (s *Service) MonetaryCVaR(value float64, returns []float64, confidence float64) (float64, error) {
	if value < 0 {
		return 0, &domain.InvalidParameterError{Name: "value", Value: value, Reason: "must be non-negative"}
	}

	cv, err := s.CVaR(returns, confidence)
	if err != nil {
		return 0, err
	}

	return math.Abs(cv) * value, nil
}

// Metrics computes the full set of historical risk measures for a return series
func (s *Service) Metrics(returns []float64, confidence float64) (*Metrics, error) {
	v, err := s.VaR(returns, confidence)
	if err != nil {
		return nil, err
	}

	cv, err := s.CVaR(returns, confidence)
	if err != nil {
		return nil, err
	}

	vol := formulas.StdDev(returns)
	maxDD := formulas.CalculateMaxDrawdown(returns)

	return &Metrics{
		VaR:                  v,
		CVaR:                 cv,
		Volatility:           vol,
		AnnualizedVolatility: vol * math.Sqrt(252),
		MaxDrawdown:          maxDD,
		Confidence:           confidence,
		Observations:         len(returns),
	}, nil
}

// CorrelationMatrix computes the Pearson correlation of return columns.
// Diagonal entries are set to exactly 1. Pairs involving a zero-variance
// column get correlation 0 rather than NaN.
func (s *Service) CorrelationMatrix(prices *domain.PriceMatrix) (*CorrelationMatrix, error) {
	rm, err := s.returnsForDecomposition(prices, "correlation_matrix")
	if err != nil {
		return nil, err
	}

	cov := rm.Covariance()
	n := rm.NumAssets()

	values := make([][]float64, n)
	for i := 0; i < n; i++ {
		values[i] = make([]float64, n)
		values[i][i] = 1.0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			vi := cov.At(i, i)
			vj := cov.At(j, j)

			corr := 0.0
			if vi > 0 && vj > 0 {
				corr = cov.At(i, j) / math.Sqrt(vi*vj)
				// Clamp to [-1, 1]
				if corr > 1 {
					corr = 1
				} else if corr < -1 {
					corr = -1
				}
			}

			values[i][j] = corr
			values[j][i] = corr
		}
	}

	return &CorrelationMatrix{
		Symbols: prices.Symbols(),
		Values:  values,
	}, nil
}

// Volatilities computes the per-asset return standard deviation, optionally
// annualized, aligned to price matrix columns.
func (s *Service) Volatilities(prices *domain.PriceMatrix, annualize bool) ([]AssetVolatility, error) {
	rm, err := s.returnsForDecomposition(prices, "volatilities")
	if err != nil {
		return nil, err
	}

	symbols := prices.Symbols()
	out := make([]AssetVolatility, rm.NumAssets())
	for j := 0; j < rm.NumAssets(); j++ {
		vol := formulas.StdDev(rm.Column(j))
		if annualize {
			vol *= math.Sqrt(252)
		}
		out[j] = AssetVolatility{Symbol: symbols[j], Volatility: vol}
	}

	return out, nil
}

// RiskContribution decomposes portfolio variance into per-asset percentage
// contributions (Euler allocation).
//
// Formula:
//
//	sigma = sample covariance of returns (N-1)
//	portfolio variance = w' * sigma * w
//	marginal m = sigma * w
//	component c_i = w_i * m_i
//	percent_i = 100 * c_i / portfolio variance
//
// The decomposition is additive and exact: sum(c_i) equals the portfolio
// variance, so the output percentages sum to 100.
func (s *Service) RiskContribution(prices *domain.PriceMatrix, weights []float64) (*Decomposition, error) {
	rm, err := s.returnsForDecomposition(prices, "risk_contribution")
	if err != nil {
		return nil, err
	}

	n := rm.NumAssets()
	if len(weights) != n {
		return nil, &domain.DimensionMismatchError{Op: "risk_contribution", Want: n, Got: len(weights)}
	}

	cov := rm.Covariance()
	w := mat.NewVecDense(n, weights)

	var m mat.VecDense
	m.MulVec(cov, w)

	variance := mat.Dot(w, &m)
	if variance <= 0 || math.IsNaN(variance) {
		return nil, &domain.DegenerateVarianceError{Variance: variance}
	}

	symbols := prices.Symbols()
	contributions := make([]Contribution, n)
	for i := 0; i < n; i++ {
		component := weights[i] * m.AtVec(i)
		contributions[i] = Contribution{
			Symbol:  symbols[i],
			Weight:  weights[i],
			Percent: 100 * component / variance,
		}
	}

	return &Decomposition{
		Contributions:     contributions,
		PortfolioVariance: variance,
	}, nil
}

// returnsForDecomposition derives returns and enforces the minimum sample
// size for covariance fitting (two return observations).
func (s *Service) returnsForDecomposition(prices *domain.PriceMatrix, op string) (*domain.ReturnMatrix, error) {
	rm, err := prices.Returns()
	if err != nil {
		return nil, err
	}

	if rm.NumRows() < 2 {
		return nil, &domain.InsufficientDataError{Op: op, Needed: 2, Got: rm.NumRows()}
	}

	return rm, nil
}

func validateConfidence(confidence float64) error {
	if confidence <= 0 || confidence >= 1 {
		return &domain.InvalidParameterError{
			Name:   "confidence",
			Value:  confidence,
			Reason: "must be strictly between 0 and 1",
		}
	}
	return nil
}
