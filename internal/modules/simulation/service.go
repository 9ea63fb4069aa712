package simulation

import (
	"math/rand/v2"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"
)

const lossBins = 50

// Service runs Monte Carlo simulations over fitted Gaussian return models
type Service struct {
	log zerolog.Logger
}

// NewService creates a new simulation service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "simulation").Logger(),
	}
}

// SimulatePortfolioOutcomes simulates terminal portfolio values over the
// horizon. The pipeline fits a mean vector and covariance matrix from the
// price history, then draws daily asset-return vectors from N(mu, Sigma)
// i.i.d. across days, projects them onto the weights and compounds.
//
// Identical inputs and seed produce bit-identical output: every shard of
// simulations constructs its own PCG generator from (seed, shard index),
// so neither worker count nor scheduling order can change the draws.
func (s *Service) SimulatePortfolioOutcomes(
	prices *domain.PriceMatrix,
	weights []float64,
	currentValue float64,
	opts Options,
) ([]float64, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if currentValue <= 0 {
		return nil, &domain.InvalidParameterError{
			Name: "current_value", Value: currentValue, Reason: "must be positive",
		}
	}

	rm, err := prices.Returns()
	if err != nil {
		return nil, err
	}
	if rm.NumRows() < 2 {
		return nil, &domain.InsufficientDataError{
			Op: "simulate_portfolio_outcomes", Needed: 2, Got: rm.NumRows(),
		}
	}

	n := rm.NumAssets()
	if len(weights) != n {
		return nil, &domain.DimensionMismatchError{
			Op: "simulate_portfolio_outcomes", Want: n, Got: len(weights),
		}
	}

	sampler, err := newMVSampler(rm.MeanVector(), rm.Covariance())
	if err != nil {
		return nil, err
	}

	results := make([]float64, opts.NumSimulations)

	runShards(numShardsFor(opts.NumSimulations), func(shard int) {
		src := rand.NewPCG(opts.Seed, uint64(shard))
		normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

		z := make([]float64, n)
		rv := make([]float64, n)

		start, end := shardBounds(shard, opts.NumSimulations)
		for sim := start; sim < end; sim++ {
			value := currentValue
			for day := 0; day < opts.HorizonDays; day++ {
				for i := range z {
					z[i] = normal.Rand()
				}
				sampler.sample(z, rv)

				dayReturn := 0.0
				for i, w := range weights {
					dayReturn += w * rv[i]
				}
				value *= 1 + dayReturn
			}
			results[sim] = value
		}
	})

	s.log.Debug().
		Int("simulations", opts.NumSimulations).
		Int("horizon_days", opts.HorizonDays).
		Int("assets", n).
		Msg("Portfolio simulation completed")

	return results, nil
}

// SimulateSingleAssetPaths simulates full price paths for one asset. The
// result has one row per simulation and horizon+1 columns, with column 0
// equal to the current price. Same determinism contract as the portfolio run.
func (s *Service) SimulateSingleAssetPaths(
	series []float64,
	currentPrice float64,
	opts Options,
) ([][]float64, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if currentPrice <= 0 {
		return nil, &domain.InvalidParameterError{
			Name: "current_price", Value: currentPrice, Reason: "must be positive",
		}
	}

	returns := formulas.CalculateReturns(series)
	if len(returns) < 2 {
		return nil, &domain.InsufficientDataError{
			Op: "simulate_single_asset_paths", Needed: 2, Got: len(returns),
		}
	}

	mu := formulas.Mean(returns)
	sigma := formulas.StdDev(returns)

	paths := make([][]float64, opts.NumSimulations)

	runShards(numShardsFor(opts.NumSimulations), func(shard int) {
		src := rand.NewPCG(opts.Seed, uint64(shard))
		normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

		start, end := shardBounds(shard, opts.NumSimulations)
		for sim := start; sim < end; sim++ {
			path := make([]float64, opts.HorizonDays+1)
			path[0] = currentPrice
			for t := 1; t <= opts.HorizonDays; t++ {
				draw := mu + sigma*normal.Rand()
				path[t] = path[t-1] * (1 + draw)
			}
			paths[sim] = path
		}
	})

	s.log.Debug().
		Int("simulations", opts.NumSimulations).
		Int("horizon_days", opts.HorizonDays).
		Msg("Single-asset simulation completed")

	return paths, nil
}

// Statistics summarizes a simulated terminal-value distribution.
// Gain/loss probabilities use strict inequality against the current value,
// so a distribution of values all equal to it reports zero for both.
func (s *Service) Statistics(values []float64, currentValue float64) (*Stats, error) {
	if len(values) == 0 {
		return nil, &domain.InsufficientDataError{Op: "simulation_statistics", Needed: 1, Got: 0}
	}
	if currentValue <= 0 {
		return nil, &domain.InvalidParameterError{
			Name: "current_value", Value: currentValue, Reason: "must be positive",
		}
	}

	n := float64(len(values))
	mean := formulas.Mean(values)
	median := formulas.Median(values)

	gains, losses, significantLosses := 0, 0, 0
	significantThreshold := 0.95 * currentValue
	for _, v := range values {
		if v > currentValue {
			gains++
		}
		if v < currentValue {
			losses++
		}
		if v < significantThreshold {
			significantLosses++
		}
	}

	var95 := formulas.Percentile(values, 5)

	tailSum := 0.0
	tailCount := 0
	for _, v := range values {
		if v <= var95 {
			tailSum += v
			tailCount++
		}
	}
	if tailCount == 0 {
		return nil, &domain.DegenerateSampleError{Op: "simulation_statistics"}
	}

	return &Stats{
		Mean:   mean,
		Median: median,
		StdDev: formulas.PopStdDev(values),
		Percentiles: map[int]float64{
			5:  formulas.Percentile(values, 5),
			25: formulas.Percentile(values, 25),
			50: median,
			75: formulas.Percentile(values, 75),
			95: formulas.Percentile(values, 95),
		},
		ProbGain:            float64(gains) / n,
		ProbLoss:            float64(losses) / n,
		ProbSignificantLoss: float64(significantLosses) / n,
		MeanReturn:          (mean - currentValue) / currentValue,
		MedianReturn:        (median - currentValue) / currentValue,
		VaR95:               var95,
		CVaR95:              tailSum / float64(tailCount),
		CurrentValue:        currentValue,
		NumSimulations:      len(values),
	}, nil
}

// LossDistribution bins the positive losses (current value minus terminal
// value) into a fixed-width histogram. Simulations that end at or above the
// current value contribute nothing, so the probabilities sum to the overall
// loss probability.
func (s *Service) LossDistribution(values []float64, currentValue float64) (*LossDistribution, error) {
	if len(values) == 0 {
		return nil, &domain.InsufficientDataError{Op: "loss_distribution", Needed: 1, Got: 0}
	}
	if currentValue <= 0 {
		return nil, &domain.InvalidParameterError{
			Name: "current_value", Value: currentValue, Reason: "must be positive",
		}
	}

	losses := make([]float64, 0, len(values))
	for _, v := range values {
		if v < currentValue {
			losses = append(losses, currentValue-v)
		}
	}

	if len(losses) == 0 {
		return &LossDistribution{
			BinCenters:    []float64{},
			Probabilities: []float64{},
		}, nil
	}

	lo, hi := losses[0], losses[0]
	for _, l := range losses[1:] {
		if l < lo {
			lo = l
		}
		if l > hi {
			hi = l
		}
	}
	// Degenerate single-valued histograms get a unit range around the value
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / lossBins
	counts := make([]int, lossBins)
	for _, l := range losses {
		bin := int((l - lo) / width)
		if bin >= lossBins {
			bin = lossBins - 1
		}
		counts[bin]++
	}

	centers := make([]float64, lossBins)
	probabilities := make([]float64, lossBins)
	total := float64(len(values))
	for i := 0; i < lossBins; i++ {
		centers[i] = lo + (float64(i)+0.5)*width
		probabilities[i] = float64(counts[i]) / total
	}

	return &LossDistribution{
		BinCenters:    centers,
		Probabilities: probabilities,
	}, nil
}

// PathBands computes per-step percentile tracks across simulated paths,
// e.g. the 5/50/95 fan used by the scenario view.
func PathBands(paths [][]float64, percentiles []float64) []PathBand {
	if len(paths) == 0 || len(percentiles) == 0 {
		return nil
	}

	steps := len(paths[0])
	bands := make([]PathBand, len(percentiles))
	for b, pct := range percentiles {
		bands[b] = PathBand{Percentile: pct, Values: make([]float64, steps)}
	}

	column := make([]float64, len(paths))
	for t := 0; t < steps; t++ {
		for i, path := range paths {
			column[i] = path[t]
		}
		for b, pct := range percentiles {
			bands[b].Values[t] = formulas.Percentile(column, pct)
		}
	}

	return bands
}

func validateOptions(opts Options) error {
	if opts.HorizonDays < 1 {
		return &domain.InvalidParameterError{
			Name: "horizon_days", Value: float64(opts.HorizonDays), Reason: "must be at least 1",
		}
	}
	if opts.NumSimulations < 1 {
		return &domain.InvalidParameterError{
			Name: "n_simulations", Value: float64(opts.NumSimulations), Reason: "must be at least 1",
		}
	}
	return nil
}
