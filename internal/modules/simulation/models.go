// Package simulation provides seeded Monte Carlo simulation of portfolio
// outcomes and single-asset price paths.
package simulation

// Options controls a simulation run. Horizon and simulation count must be
// positive; callers apply the configured defaults before invoking the service.
type Options struct {
	HorizonDays    int    `json:"horizon_days"`
	NumSimulations int    `json:"n_simulations"`
	Seed           uint64 `json:"seed"`
}

// Defaults matching the canonical run shapes
const (
	DefaultPortfolioHorizonDays = 30
	DefaultPortfolioSimulations = 10000
	DefaultAssetHorizonDays     = 14
	DefaultAssetSimulations     = 500
	DefaultSeed                 = 42
)

// PortfolioDefaults returns the standard options for portfolio outcome runs
func PortfolioDefaults() Options {
	return Options{
		HorizonDays:    DefaultPortfolioHorizonDays,
		NumSimulations: DefaultPortfolioSimulations,
		Seed:           DefaultSeed,
	}
}

// AssetDefaults returns the standard options for single-asset path runs
func AssetDefaults() Options {
	return Options{
		HorizonDays:    DefaultAssetHorizonDays,
		NumSimulations: DefaultAssetSimulations,
		Seed:           DefaultSeed,
	}
}

// Stats summarizes a simulated terminal-value distribution against the
// portfolio's current value. VaR95/CVaR95 are value levels (not returns):
// the 5th percentile of outcomes and the mean of outcomes at or below it.
type Stats struct {
	Mean                float64         `json:"mean"`
	Median              float64         `json:"median"`
	StdDev              float64         `json:"std_dev"`
	Percentiles         map[int]float64 `json:"percentiles"`
	ProbGain            float64         `json:"prob_gain"`
	ProbLoss            float64         `json:"prob_loss"`
	ProbSignificantLoss float64         `json:"prob_significant_loss"`
	MeanReturn          float64         `json:"mean_return"`
	MedianReturn        float64         `json:"median_return"`
	VaR95               float64         `json:"var_95"`
	CVaR95              float64         `json:"cvar_95"`
	CurrentValue        float64         `json:"current_value"`
	NumSimulations      int             `json:"n_simulations"`
}

// LossDistribution is a 50-bin histogram of simulated losses (current value
// minus terminal value, positive entries only). Probabilities are counts
// divided by the total simulation count, so they sum to the loss probability
// rather than to 1.
type LossDistribution struct {
	BinCenters    []float64 `json:"bin_centers"`
	Probabilities []float64 `json:"probabilities"`
}

// PathBand is a per-step percentile track across simulated paths
type PathBand struct {
	Percentile float64   `json:"percentile"`
	Values     []float64 `json:"values"`
}
