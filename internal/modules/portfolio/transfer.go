package portfolio

import (
	"encoding/json"
	"fmt"

	"github.com/gocarina/gocsv"
)

// Export/import moves whole portfolios across process boundaries: JSON for
// session handoff, CSV for bulk entry from a spreadsheet. Both formats carry
// only the user-entered fields; IDs, positions and derived values are
// rebuilt on import.

type portfolioFile struct {
	Holdings []holdingEntry `json:"holdings"`
}

type holdingEntry struct {
	Symbol   string  `json:"symbol"`
	Shares   float64 `json:"shares"`
	BuyPrice float64 `json:"buy_price"`
}

type csvHolding struct {
	Symbol   string  `csv:"symbol"`
	Shares   float64 `csv:"shares"`
	BuyPrice float64 `csv:"buy_price"`
}

// ExportJSON serializes holdings to the portable JSON format
func ExportJSON(holdings []Holding) ([]byte, error) {
	file := portfolioFile{Holdings: make([]holdingEntry, len(holdings))}
	for i, h := range holdings {
		file.Holdings[i] = holdingEntry{Symbol: h.Symbol, Shares: h.Shares, BuyPrice: h.BuyPrice}
	}
	return json.MarshalIndent(file, "", "  ")
}

// ImportJSON parses the portable JSON format, validating every entry.
// A single bad entry fails the whole import.
func ImportJSON(data []byte) ([]Holding, error) {
	var file portfolioFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio JSON: %w", err)
	}

	holdings := make([]Holding, 0, len(file.Holdings))
	for i, entry := range file.Holdings {
		h, err := NewHolding(entry.Symbol, entry.Shares, entry.BuyPrice)
		if err != nil {
			return nil, fmt.Errorf("holding %d: %w", i, err)
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

// ExportCSV serializes holdings to CSV with a header row
func ExportCSV(holdings []Holding) ([]byte, error) {
	rows := make([]csvHolding, len(holdings))
	for i, h := range holdings {
		rows[i] = csvHolding{Symbol: h.Symbol, Shares: h.Shares, BuyPrice: h.BuyPrice}
	}

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal holdings CSV: %w", err)
	}
	return []byte(out), nil
}

// ImportCSV parses a CSV of holdings, validating every row
func ImportCSV(data []byte) ([]Holding, error) {
	var rows []csvHolding
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse holdings CSV: %w", err)
	}

	holdings := make([]Holding, 0, len(rows))
	for i, row := range rows {
		h, err := NewHolding(row.Symbol, row.Shares, row.BuyPrice)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}

// ExportJSON serializes the current portfolio
func (s *Service) ExportJSON() ([]byte, error) {
	holdings, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	return ExportJSON(holdings)
}

// ImportJSON replaces the current portfolio with the parsed holdings
func (s *Service) ImportJSON(data []byte) (int, error) {
	holdings, err := ImportJSON(data)
	if err != nil {
		return 0, err
	}
	if err := s.repo.ReplaceAll(holdings); err != nil {
		return 0, err
	}
	s.log.Info().Int("count", len(holdings)).Msg("Portfolio imported from JSON")
	return len(holdings), nil
}

// ExportCSV serializes the current portfolio
func (s *Service) ExportCSV() ([]byte, error) {
	holdings, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	return ExportCSV(holdings)
}

// ImportCSV replaces the current portfolio with the parsed holdings
func (s *Service) ImportCSV(data []byte) (int, error) {
	holdings, err := ImportCSV(data)
	if err != nil {
		return 0, err
	}
	if err := s.repo.ReplaceAll(holdings); err != nil {
		return 0, err
	}
	s.log.Info().Int("count", len(holdings)).Msg("Portfolio imported from CSV")
	return len(holdings), nil
}
