package portfolio

import (
	"github.com/aristath/vigil/internal/domain"
	"github.com/rs/zerolog"
)

// The valuation functions are pure: they take holdings and an already
// resolved quote map and never touch the database or the network. A holding
// whose symbol is absent from quotes contributes zero value and zero weight.
// That silent degradation is deliberate, the excluded symbols are surfaced
// at the API layer instead of failing the whole valuation.

// CurrentValue returns the live portfolio value: sum of shares times quote
// over the holdings that have a quote.
func CurrentValue(holdings []Holding, quotes map[string]float64) float64 {
	total := 0.0
	for _, h := range holdings {
		if quote, ok := quotes[h.Symbol]; ok {
			total += h.Shares * quote
		}
	}
	return total
}

// Weights returns each holding's share of the live portfolio value, in
// holding order. When the total value is zero the result is an all-zero
// vector rather than an error.
func Weights(holdings []Holding, quotes map[string]float64) []float64 {
	weights := make([]float64, len(holdings))
	total := CurrentValue(holdings, quotes)
	if total == 0 {
		return weights
	}

	for i, h := range holdings {
		if quote, ok := quotes[h.Symbol]; ok {
			weights[i] = h.Shares * quote / total
		}
	}
	return weights
}

// AllocationTable returns the per-holding valuation breakdown, in holding
// order. Percentage gain is zero when the invested value is zero.
func AllocationTable(holdings []Holding, quotes map[string]float64) []AllocationRow {
	total := CurrentValue(holdings, quotes)

	rows := make([]AllocationRow, len(holdings))
	for i, h := range holdings {
		row := AllocationRow{
			Symbol:        h.Symbol,
			Shares:        h.Shares,
			BuyPrice:      h.BuyPrice,
			InvestedValue: h.InvestedValue,
		}

		if quote, ok := quotes[h.Symbol]; ok {
			row.Quote = true
			row.CurrentPrice = quote
			row.CurrentValue = h.Shares * quote
			row.GainAbs = row.CurrentValue - h.InvestedValue
			if h.InvestedValue > 0 {
				row.GainPct = row.GainAbs / h.InvestedValue * 100
			}
			if total > 0 {
				row.Weight = row.CurrentValue / total
			}
		}

		rows[i] = row
	}
	return rows
}

// Service ties holdings persistence to live quotes and produces the weight
// vectors consumed by the risk and simulation modules.
type Service struct {
	repo   *HoldingRepository
	quotes domain.QuoteSource
	log    zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(repo *HoldingRepository, quotes domain.QuoteSource, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		quotes: quotes,
		log:    log.With().Str("service", "portfolio").Logger(),
	}
}

// Holdings returns all holdings in insertion order
func (s *Service) Holdings() ([]Holding, error) {
	return s.repo.GetAll()
}

// Add validates and persists a new holding
func (s *Service) Add(symbol string, shares, buyPrice float64) (Holding, error) {
	h, err := NewHolding(symbol, shares, buyPrice)
	if err != nil {
		return Holding{}, err
	}
	return s.repo.Add(h)
}

// Remove deletes the holding at the given insertion-order index
func (s *Service) Remove(index int) (*Holding, error) {
	return s.repo.RemoveByIndex(index)
}

// Value returns the current portfolio value from live quotes
func (s *Service) Value() (float64, error) {
	holdings, err := s.repo.GetAll()
	if err != nil {
		return 0, err
	}
	if len(holdings) == 0 {
		return 0, nil
	}

	quotes, err := s.resolveQuotes(holdings)
	if err != nil {
		return 0, err
	}

	return CurrentValue(holdings, quotes), nil
}

// HoldingsCount returns the number of holdings
func (s *Service) HoldingsCount() (int, error) {
	return s.repo.Count()
}

// Allocations returns the per-holding valuation table from live quotes
func (s *Service) Allocations() ([]AllocationRow, error) {
	holdings, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}

	quotes, err := s.resolveQuotes(holdings)
	if err != nil {
		return nil, err
	}

	return AllocationTable(holdings, quotes), nil
}

// HoldingWeights returns the holdings together with the positional
// per-holding weight vector.
func (s *Service) HoldingWeights() ([]Holding, []float64, error) {
	holdings, err := s.repo.GetAll()
	if err != nil {
		return nil, nil, err
	}

	quotes, err := s.resolveQuotes(holdings)
	if err != nil {
		return nil, nil, err
	}

	return holdings, Weights(holdings, quotes), nil
}

// PortfolioWeights aggregates holdings by symbol and returns the per-symbol
// weight vector used by the risk and simulation modules. Symbols are ordered
// by first appearance in the portfolio. Symbols without a live quote carry
// weight zero, so the vector need not sum to 1.
func (s *Service) PortfolioWeights() ([]string, []float64, float64, error) {
	holdings, err := s.repo.GetAll()
	if err != nil {
		return nil, nil, 0, err
	}
	if len(holdings) == 0 {
		return nil, nil, 0, nil
	}

	quotes, err := s.resolveQuotes(holdings)
	if err != nil {
		return nil, nil, 0, err
	}

	var symbols []string
	valueBySymbol := make(map[string]float64)
	for _, h := range holdings {
		if _, seen := valueBySymbol[h.Symbol]; !seen {
			symbols = append(symbols, h.Symbol)
			valueBySymbol[h.Symbol] = 0
		}
		if quote, ok := quotes[h.Symbol]; ok {
			valueBySymbol[h.Symbol] += h.Shares * quote
		}
	}

	totalValue := 0.0
	for _, v := range valueBySymbol {
		totalValue += v
	}

	weights := make([]float64, len(symbols))
	if totalValue > 0 {
		for i, sym := range symbols {
			weights[i] = valueBySymbol[sym] / totalValue
		}
	}

	return symbols, weights, totalValue, nil
}

func (s *Service) resolveQuotes(holdings []Holding) (map[string]float64, error) {
	if len(holdings) == 0 {
		return map[string]float64{}, nil
	}

	seen := make(map[string]struct{}, len(holdings))
	var symbols []string
	for _, h := range holdings {
		if _, ok := seen[h.Symbol]; ok {
			continue
		}
		seen[h.Symbol] = struct{}{}
		symbols = append(symbols, h.Symbol)
	}

	quotes, err := s.quotes.Quotes(symbols)
	if err != nil {
		return nil, err
	}

	if len(quotes) < len(symbols) {
		s.log.Warn().
			Int("requested", len(symbols)).
			Int("quoted", len(quotes)).
			Msg("Some holdings have no live quote, they are valued at zero")
	}

	return quotes, nil
}
