// Package portfolio manages holdings and computes portfolio valuations.
package portfolio

import (
	"strings"

	"github.com/aristath/vigil/internal/domain"
	"github.com/google/uuid"
)

// Holding is an immutable lot: created on add, deleted on remove, never
// updated in place. Changing a lot means removing it and adding a new one.
type Holding struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Shares        float64 `json:"shares"`
	BuyPrice      float64 `json:"buy_price"`
	InvestedValue float64 `json:"invested_value"`
	Position      int     `json:"position"`
	CreatedAt     int64   `json:"created_at"`
}

// NewHolding validates the inputs and builds a holding with a fresh ID.
// InvestedValue is derived once here and never recomputed.
func NewHolding(symbol string, shares, buyPrice float64) (Holding, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Holding{}, &domain.InvalidParameterError{Name: "symbol", Reason: "must not be empty"}
	}
	if shares <= 0 {
		return Holding{}, &domain.InvalidParameterError{Name: "shares", Value: shares, Reason: "must be positive"}
	}
	if buyPrice <= 0 {
		return Holding{}, &domain.InvalidParameterError{Name: "buy_price", Value: buyPrice, Reason: "must be positive"}
	}

	return Holding{
		ID:            uuid.New().String(),
		Symbol:        symbol,
		Shares:        shares,
		BuyPrice:      buyPrice,
		InvestedValue: shares * buyPrice,
	}, nil
}

// AllocationRow is one line of the allocation table: a holding plus its
// live valuation and gain/loss. Quote is false when no live price was
// available, in which case CurrentPrice/CurrentValue/Weight are zero.
type AllocationRow struct {
	Symbol        string  `json:"symbol"`
	Shares        float64 `json:"shares"`
	BuyPrice      float64 `json:"buy_price"`
	InvestedValue float64 `json:"invested_value"`
	CurrentPrice  float64 `json:"current_price"`
	CurrentValue  float64 `json:"current_value"`
	Weight        float64 `json:"weight"`
	GainAbs       float64 `json:"gain_abs"`
	GainPct       float64 `json:"gain_pct"`
	Quote         bool    `json:"quote_available"`
}

// Snapshot is a point-in-time record of total portfolio value.
type Snapshot struct {
	ID            int64   `json:"id"`
	TotalValue    float64 `json:"total_value"`
	HoldingsCount int     `json:"holdings_count"`
	CreatedAt     int64   `json:"created_at"`
}
