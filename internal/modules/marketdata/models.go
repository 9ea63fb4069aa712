// Package marketdata retrieves, caches and serves quotes and price history.
// It implements the quote and history contracts the analytics modules
// consume; nothing outside this package talks to Yahoo Finance.
package marketdata

import (
	"github.com/aristath/vigil/pkg/formulas"
)

// Quote is a live market quote for one symbol
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close,omitempty"`
	ChangePct     float64 `json:"change_pct,omitempty"`
	FetchedAt     int64   `json:"fetched_at"`
}

// DailyPrice is one day's bar for one symbol. Date is a Unix timestamp
// truncated to midnight UTC. AdjClose carries split and dividend
// adjustments; analytics run on AdjClose, Close keeps the raw print.
type DailyPrice struct {
	Symbol   string  `json:"symbol"`
	Date     int64   `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adj_close"`
	Volume   int64   `json:"volume"`
}

// HistorySummary describes one symbol's stored history
type HistorySummary struct {
	Symbol          string  `json:"symbol"`
	Rows            int     `json:"rows"`
	FirstDate       int64   `json:"first_date"`
	LastDate        int64   `json:"last_date"`
	LastClose       float64 `json:"last_close"`
	MinClose        float64 `json:"min_close"`
	MaxClose        float64 `json:"max_close"`
	MeanDailyReturn float64 `json:"mean_daily_return"`
	AnnualizedVol   float64 `json:"annualized_volatility"`
}

// QualityReport scores how usable a symbol's history is for analytics.
// Score = 0.7 * depth + 0.3 * completeness, where depth saturates at one
// trading year of rows and completeness is the filled share of the span
// between first and last date, counting ~252 trading days per year.
type QualityReport struct {
	Symbol       string  `json:"symbol"`
	Rows         int     `json:"rows"`
	Depth        float64 `json:"depth"`
	Completeness float64 `json:"completeness"`
	Score        float64 `json:"score"`
}

// IndicatorSet bundles the technical indicators served per symbol.
// Nil fields mean the stored history is too short for that indicator.
type IndicatorSet struct {
	Symbol    string                   `json:"symbol"`
	LastClose float64                  `json:"last_close"`
	RSI14     *float64                 `json:"rsi_14,omitempty"`
	SMA20     *float64                 `json:"sma_20,omitempty"`
	SMA50     *float64                 `json:"sma_50,omitempty"`
	Bollinger *formulas.BollingerBands `json:"bollinger,omitempty"`
}
