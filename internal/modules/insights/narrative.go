package insights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/vigil/internal/modules/risk"
	"github.com/aristath/vigil/internal/modules/simulation"
	"github.com/aristath/vigil/pkg/formulas"
)

// RiskLevel bands VaR expressed as a percent of portfolio value
func RiskLevel(varPct float64) string {
	switch {
	case varPct < 3:
		return LevelLow
	case varPct < 7:
		return LevelModerate
	case varPct < 12:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// ExplainVaR describes the monetary VaR against the portfolio value
func ExplainVaR(varAmount, portfolioValue, confidence float64, horizonDays int) Insight {
	varPct := 0.0
	if portfolioValue > 0 {
		varPct = varAmount / portfolioValue * 100
	}
	probPct := (1 - confidence) * 100

	return Insight{
		Topic:    "var",
		Level:    RiskLevel(varPct),
		Headline: fmt.Sprintf("Value at risk is %.1f%% of the portfolio", varPct),
		Detail: fmt.Sprintf(
			"There is a %.0f%% chance that the portfolio loses more than %.2f "+
				"(%.1f%% of its value) over the next %d days under typical market conditions.",
			probPct, varAmount, varPct, horizonDays),
	}
}

// ExplainOutcomes describes a simulated terminal-value distribution
func ExplainOutcomes(stats *simulation.Stats) Insight {
	probGain := stats.ProbGain * 100
	probLoss := stats.ProbLoss * 100
	tailLoss := stats.CurrentValue - stats.VaR95

	return Insight{
		Topic:    "outcomes",
		Level:    LevelInfo,
		Headline: fmt.Sprintf("%.0f%% of simulated scenarios end in gains", probGain),
		Detail: fmt.Sprintf(
			"%.0f%% of simulated scenarios end in gains and %.0f%% in losses. "+
				"The median outcome is %.2f. In the worst 5%% of scenarios, losses exceed %.2f.",
			probGain, probLoss, stats.Median, tailLoss),
	}
}

// ExplainContributors names the assets with the largest risk shares.
// Input order is preserved; the narrative sorts a copy. Requires at least
// one contribution.
func ExplainContributors(contributions []risk.Contribution, topN int) Insight {
	sorted := append([]risk.Contribution(nil), contributions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Percent > sorted[j].Percent })

	if topN > len(sorted) {
		topN = len(sorted)
	}
	parts := make([]string, topN)
	for i, c := range sorted[:topN] {
		parts[i] = fmt.Sprintf("%s (%.1f%%)", c.Symbol, c.Percent)
	}

	return Insight{
		Topic:    "contributors",
		Level:    LevelInfo,
		Headline: fmt.Sprintf("%s drives the largest share of portfolio risk", sorted[0].Symbol),
		Detail: fmt.Sprintf(
			"The largest risk contributors are %s. Each asset's share reflects its weight "+
				"and volatility together with its correlation to the rest of the portfolio.",
			strings.Join(parts, ", ")),
	}
}

// ExplainCorrelation reads the correlation structure. Requires at least two
// assets in the matrix.
func ExplainCorrelation(corr *risk.CorrelationMatrix) Insight {
	avg := corr.AverageOffDiagonal()

	minCorr, maxCorr := 1.0, -1.0
	n := len(corr.Symbols)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := corr.Values[i][j]
			if v < minCorr {
				minCorr = v
			}
			if v > maxCorr {
				maxCorr = v
			}
		}
	}

	var band, implication string
	switch {
	case avg > 0.6:
		band = DiversificationLimited
		implication = "assets tend to move together, which mutes the benefit of spreading capital across them"
	case avg > 0.3:
		band = DiversificationModerate
		implication = "holdings show meaningful co-movement while still spreading some risk"
	default:
		band = DiversificationGood
		implication = "holdings move largely independently of one another"
	}

	a, b, strongest, _ := corr.StrongestPair()

	return Insight{
		Topic:    "correlation",
		Level:    band,
		Headline: fmt.Sprintf("Diversification is %s", band),
		Detail: fmt.Sprintf(
			"Average pairwise correlation is %.2f (range %.2f to %.2f), so %s. "+
				"The strongest co-movement is between %s and %s (%.2f).",
			avg, minCorr, maxCorr, implication, a, b, strongest),
	}
}

// ExplainVolatility reads the volatility spread and flags holdings that pair
// above-median volatility with more than 20% of portfolio weight. Weights are
// aligned to the volatility slice by index.
func ExplainVolatility(volatilities []risk.AssetVolatility, weights []float64) Insight {
	low, high := volatilities[0], volatilities[0]
	values := make([]float64, len(volatilities))
	for i, v := range volatilities {
		values[i] = v.Volatility
		if v.Volatility < low.Volatility {
			low = v
		}
		if v.Volatility > high.Volatility {
			high = v
		}
	}
	median := formulas.Median(values)

	var flagged []string
	for i, v := range volatilities {
		if v.Volatility > median && i < len(weights) && weights[i] > 0.20 {
			flagged = append(flagged, v.Symbol)
		}
	}

	detail := fmt.Sprintf("Individual volatilities range from %.1f%% (%s) to %.1f%% (%s).",
		low.Volatility*100, low.Symbol, high.Volatility*100, high.Symbol)

	if len(flagged) > 0 {
		verb := "combines"
		if len(flagged) > 1 {
			verb = "combine"
		}
		return Insight{
			Topic:    "volatility",
			Level:    LevelWarning,
			Headline: "High-volatility holdings carry significant weight",
			Detail: fmt.Sprintf("%s %s %s high volatility with portfolio weight above 20%%, amplifying risk exposure.",
				detail, strings.Join(flagged, ", "), verb),
		}
	}

	return Insight{
		Topic:    "volatility",
		Level:    LevelInfo,
		Headline: "Volatility exposure is well distributed",
		Detail:   detail + " Portfolio weights are well distributed relative to individual volatilities.",
	}
}

// ExplainScenarioPaths describes simulated terminal prices for one asset as
// percentage moves from the current price. Requires a positive current price
// and at least one terminal price.
func ExplainScenarioPaths(currentPrice float64, terminalPrices []float64, horizonDays int) Insight {
	changes := make([]float64, len(terminalPrices))
	for i, p := range terminalPrices {
		changes[i] = (p - currentPrice) / currentPrice * 100
	}

	median := formulas.Median(changes)
	p5 := formulas.Percentile(changes, 5)
	p95 := formulas.Percentile(changes, 95)

	return Insight{
		Topic:    "paths",
		Level:    LevelInfo,
		Headline: fmt.Sprintf("Median simulated move over %d days is %+.2f%%", horizonDays, median),
		Detail: fmt.Sprintf(
			"The median simulated change over %d days is %+.2f%%, with 90%% of paths ending "+
				"between %+.2f%% and %+.2f%%. This is a representation of uncertainty based on "+
				"historical volatility, not a prediction.",
			horizonDays, median, p5, p95),
	}
}

// SummaryInput carries the computed metrics a composite summary is built
// from. Optional facets may be left zero-valued and are then omitted.
type SummaryInput struct {
	PortfolioValue float64
	Confidence     float64
	HorizonDays    int
	VaRAmount      float64
	CVaRAmount     float64
	SimStats       *simulation.Stats
	Contributions  []risk.Contribution
	Correlation    *risk.CorrelationMatrix
	Volatilities   []risk.AssetVolatility
	Weights        []float64
}

// BuildSummary assembles the composite narrative. Facets with missing inputs
// are skipped rather than failing the whole summary.
func BuildSummary(in SummaryInput) *Summary {
	varPct, cvarPct := 0.0, 0.0
	if in.PortfolioValue > 0 {
		varPct = in.VaRAmount / in.PortfolioValue * 100
		cvarPct = in.CVaRAmount / in.PortfolioValue * 100
	}

	insights := []Insight{
		ExplainVaR(in.VaRAmount, in.PortfolioValue, in.Confidence, in.HorizonDays),
	}
	if in.SimStats != nil {
		insights = append(insights, ExplainOutcomes(in.SimStats))
	}
	if len(in.Contributions) > 0 {
		insights = append(insights, ExplainContributors(in.Contributions, 3))
	}
	if in.Correlation != nil && len(in.Correlation.Symbols) >= 2 {
		insights = append(insights, ExplainCorrelation(in.Correlation))
	}
	if len(in.Volatilities) > 0 {
		insights = append(insights, ExplainVolatility(in.Volatilities, in.Weights))
	}

	probPct := (1 - in.Confidence) * 100
	interpretation := fmt.Sprintf(
		"Under normal market conditions over the next %d days, there is a %.0f%% probability "+
			"of losing more than %.2f. If losses exceed that threshold, the average loss is %.2f. "+
			"Estimates derive from historical volatility and correlation patterns.",
		in.HorizonDays, probPct, in.VaRAmount, in.CVaRAmount)

	return &Summary{
		RiskLevel:      RiskLevel(varPct),
		VaRPct:         varPct,
		CVaRPct:        cvarPct,
		Interpretation: interpretation,
		Insights:       insights,
	}
}
