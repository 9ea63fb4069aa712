package domain

// Market data boundary contracts. The analytics core never fetches anything
// itself: collaborators resolve quotes and history into in-memory structures
// before any core function runs, and cache policy lives entirely on their side.

// QuoteSource supplies the most recent price per symbol. Symbols without an
// available quote are simply absent from the returned map.
type QuoteSource interface {
	Quotes(symbols []string) (map[string]float64, error)
}

// HistorySource supplies aligned historical close prices.
type HistorySource interface {
	// BuildPriceMatrix assembles a date-aligned PriceMatrix for the symbols,
	// keeping only dates on which every symbol has a close.
	BuildPriceMatrix(symbols []string, lookbackDays int) (*PriceMatrix, error)

	// PriceSeries returns a single symbol's closes, oldest first.
	PriceSeries(symbol string, lookbackDays int) ([]float64, error)
}
