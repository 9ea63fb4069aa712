// Package insights renders deterministic plain-language readings of the
// portfolio's risk picture. Text is built from computed metrics only, so the
// same inputs always produce the same words; amounts are plain numbers with
// no currency or locale formatting.
package insights

// Insight is one reading of a single risk facet
type Insight struct {
	Topic    string `json:"topic"`
	Level    string `json:"level"`
	Headline string `json:"headline"`
	Detail   string `json:"detail"`
}

// Risk level bands, assessed on VaR as a percent of portfolio value
const (
	LevelLow      = "Low"
	LevelModerate = "Moderate"
	LevelHigh     = "High"
	LevelVeryHigh = "Very High"
)

// Diversification bands, assessed on average pairwise correlation
const (
	DiversificationLimited  = "limited"
	DiversificationModerate = "moderate"
	DiversificationGood     = "good"
)

// Severity levels for facets without a dedicated band
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
)

// Summary is the composite risk narrative for the whole portfolio
type Summary struct {
	RiskLevel      string    `json:"risk_level"`
	VaRPct         float64   `json:"var_pct"`
	CVaRPct        float64   `json:"cvar_pct"`
	Interpretation string    `json:"interpretation"`
	Insights       []Insight `json:"insights"`
}
