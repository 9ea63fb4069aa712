package marketdata

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/pkg/formulas"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
)

// tradingDaysPerYear is the depth and completeness yardstick for quality
// scoring; equity markets trade roughly 252 sessions a year.
const tradingDaysPerYear = 252.0

// Fetcher is the upstream market data source. Implemented by YahooClient;
// declared here so the service can be tested without network access.
type Fetcher interface {
	FetchDailyHistory(symbol string, start, end time.Time) ([]DailyPrice, error)
	FetchQuote(symbol string) (*Quote, error)
	FetchQuotes(symbols []string) (map[string]*Quote, error)
}

// Service serves quotes and history to the rest of the system. It satisfies
// the domain QuoteSource and HistorySource contracts.
type Service struct {
	fetcher Fetcher
	history *HistoryRepository
	cache   *QuoteCache
	log     zerolog.Logger
}

// NewService creates a new market data service
func NewService(fetcher Fetcher, history *HistoryRepository, cache *QuoteCache, log zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		history: history,
		cache:   cache,
		log:     log.With().Str("service", "marketdata").Logger(),
	}
}

// Quotes returns the latest price per symbol. Symbols without a resolvable
// quote are absent from the map.
func (s *Service) Quotes(symbols []string) (map[string]float64, error) {
	details, err := s.QuoteDetails(symbols)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(details))
	for sym, q := range details {
		prices[sym] = q.Price
	}
	return prices, nil
}

// QuoteDetails returns full quotes per symbol, serving from the cache where
// entries are still fresh and fetching the rest in one batch.
func (s *Service) QuoteDetails(symbols []string) (map[string]*Quote, error) {
	result := make(map[string]*Quote, len(symbols))

	var misses []string
	for _, sym := range symbols {
		if q := s.cache.Get(sym); q != nil {
			result[sym] = q
			continue
		}
		misses = append(misses, sym)
	}

	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := s.fetcher.FetchQuotes(misses)
	if err != nil {
		return nil, err
	}

	for sym, q := range fetched {
		result[sym] = q
		if err := s.cache.Put(q); err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("Failed to cache quote")
		}
	}

	return result, nil
}

// BuildPriceMatrix assembles a date-aligned price matrix over the lookback
// window. Symbols with no stored history are dropped; the remaining columns
// keep only dates on which every kept symbol has a close.
func (s *Service) BuildPriceMatrix(symbols []string, lookbackDays int) (*domain.PriceMatrix, error) {
	cutoff := lookbackCutoff(lookbackDays)

	type series struct {
		symbol string
		closes map[int64]float64
	}

	var kept []series
	dateCounts := make(map[int64]int)

	for _, sym := range symbols {
		dates, closes, err := s.history.ClosesSince(sym, cutoff)
		if err != nil {
			return nil, err
		}
		if len(dates) == 0 {
			s.log.Warn().Str("symbol", sym).Msg("No stored history, excluding from matrix")
			continue
		}

		byDate := make(map[int64]float64, len(dates))
		for i, d := range dates {
			byDate[d] = closes[i]
			dateCounts[d]++
		}
		kept = append(kept, series{symbol: sym, closes: byDate})
	}

	if len(kept) == 0 {
		return nil, &domain.InsufficientDataError{Op: "price matrix", Needed: 2, Got: 0}
	}

	var shared []int64
	for date, count := range dateCounts {
		if count == len(kept) {
			shared = append(shared, date)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i] < shared[j] })

	keptSymbols := make([]string, len(kept))
	for i, ser := range kept {
		keptSymbols[i] = ser.symbol
	}

	rows := make([][]float64, len(shared))
	for i, date := range shared {
		row := make([]float64, len(kept))
		for j, ser := range kept {
			row[j] = ser.closes[date]
		}
		rows[i] = row
	}

	return domain.NewPriceMatrix(keptSymbols, rows)
}

// PriceSeries returns the symbol's adjusted closes over the lookback window,
// oldest first.
func (s *Service) PriceSeries(symbol string, lookbackDays int) ([]float64, error) {
	_, closes, err := s.history.ClosesSince(symbol, lookbackCutoff(lookbackDays))
	if err != nil {
		return nil, err
	}
	return closes, nil
}

// History returns the symbol's stored daily bars over the lookback window,
// oldest first.
func (s *Service) History(symbol string, lookbackDays int) ([]DailyPrice, error) {
	return s.history.Bars(symbol, lookbackCutoff(lookbackDays))
}

// RefreshHistory pulls missing daily bars for the symbols. Each symbol is
// fetched from the day after its last stored bar, or over the whole lookback
// window when it has none. Per-symbol failures are logged and skipped.
func (s *Service) RefreshHistory(symbols []string, lookbackDays int) (map[string]int, error) {
	now := time.Now().UTC()
	counts := make(map[string]int, len(symbols))
	failures := 0

	for _, sym := range symbols {
		start := time.Unix(lookbackCutoff(lookbackDays), 0).UTC()

		last, err := s.history.LastDate(sym)
		if err != nil {
			return counts, err
		}
		if last > 0 {
			next := time.Unix(last, 0).UTC().AddDate(0, 0, 1)
			if next.After(start) {
				start = next
			}
			if !start.Before(now) {
				counts[sym] = 0
				continue
			}
		}

		bars, err := s.fetcher.FetchDailyHistory(sym, start, now)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("History fetch failed, skipping")
			failures++
			continue
		}

		written, err := s.history.Upsert(bars)
		if err != nil {
			return counts, err
		}
		counts[sym] = written
	}

	if failures == len(symbols) && len(symbols) > 0 {
		return counts, fmt.Errorf("history refresh failed for all %d symbols", len(symbols))
	}
	return counts, nil
}

// Summary computes descriptive statistics over the symbol's stored closes
func (s *Service) Summary(symbol string, lookbackDays int) (*HistorySummary, error) {
	dates, closes, err := s.history.ClosesSince(symbol, lookbackCutoff(lookbackDays))
	if err != nil {
		return nil, err
	}
	if len(closes) < 2 {
		return nil, &domain.InsufficientDataError{Op: "history summary", Needed: 2, Got: len(closes)}
	}

	returns := formulas.CalculateReturns(closes)

	meanReturn, err := stats.Mean(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mean return: %w", err)
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return nil, fmt.Errorf("failed to compute return stdev: %w", err)
	}
	minClose, err := stats.Min(closes)
	if err != nil {
		return nil, fmt.Errorf("failed to compute min close: %w", err)
	}
	maxClose, err := stats.Max(closes)
	if err != nil {
		return nil, fmt.Errorf("failed to compute max close: %w", err)
	}

	return &HistorySummary{
		Symbol:          symbol,
		Rows:            len(closes),
		FirstDate:       dates[0],
		LastDate:        dates[len(dates)-1],
		LastClose:       closes[len(closes)-1],
		MinClose:        minClose,
		MaxClose:        maxClose,
		MeanDailyReturn: meanReturn,
		AnnualizedVol:   stdev * math.Sqrt(tradingDaysPerYear),
	}, nil
}

// Quality scores the symbol's stored history for analytics use
func (s *Service) Quality(symbol string) (*QualityReport, error) {
	dates, _, err := s.history.ClosesSince(symbol, 0)
	if err != nil {
		return nil, err
	}

	report := &QualityReport{Symbol: symbol, Rows: len(dates)}
	if len(dates) == 0 {
		return report, nil
	}

	report.Depth = math.Min(1.0, float64(len(dates))/tradingDaysPerYear)

	spanDays := float64(dates[len(dates)-1]-dates[0])/86400.0 + 1
	expected := spanDays * tradingDaysPerYear / 365.25
	if expected <= 1 {
		report.Completeness = 1.0
	} else {
		report.Completeness = math.Min(1.0, float64(len(dates))/expected)
	}

	report.Score = 0.7*report.Depth + 0.3*report.Completeness
	return report, nil
}

// QualityAll scores every symbol with stored history
func (s *Service) QualityAll() ([]QualityReport, error) {
	symbols, err := s.history.Symbols()
	if err != nil {
		return nil, err
	}

	reports := make([]QualityReport, 0, len(symbols))
	for _, sym := range symbols {
		report, err := s.Quality(sym)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sym).Msg("Quality check failed, skipping")
			continue
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// Indicators computes the technical indicator set from stored closes
func (s *Service) Indicators(symbol string, lookbackDays int) (*IndicatorSet, error) {
	closes, err := s.PriceSeries(symbol, lookbackDays)
	if err != nil {
		return nil, err
	}
	if len(closes) == 0 {
		return nil, &domain.InsufficientDataError{Op: "indicators", Needed: 1, Got: 0}
	}

	return &IndicatorSet{
		Symbol:    symbol,
		LastClose: closes[len(closes)-1],
		RSI14:     formulas.CalculateRSI(closes, 14),
		SMA20:     formulas.CalculateSMA(closes, 20),
		SMA50:     formulas.CalculateSMA(closes, 50),
		Bollinger: formulas.CalculateBollingerBands(closes, 20, 2.0),
	}, nil
}

// ValidateSymbol reports whether the symbol resolves upstream. It tries a
// live quote first and falls back to stored history, so validation still
// works offline for symbols we already track.
func (s *Service) ValidateSymbol(symbol string) (bool, error) {
	if q, err := s.fetcher.FetchQuote(symbol); err == nil && q != nil && q.Price > 0 {
		return true, nil
	}

	count, err := s.history.RowCount(symbol)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PurgeQuoteCache drops expired quote cache entries
func (s *Service) PurgeQuoteCache() (int64, error) {
	return s.cache.PurgeExpired()
}

// TrackedSymbols returns every symbol with stored history
func (s *Service) TrackedSymbols() ([]string, error) {
	return s.history.Symbols()
}

func lookbackCutoff(lookbackDays int) int64 {
	return time.Now().UTC().AddDate(0, 0, -lookbackDays).Unix()
}
