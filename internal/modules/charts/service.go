// Package charts assembles the time series behind the dashboard charts:
// portfolio value over time, price history with indicator overlays, and
// per-symbol sparklines. It is a presentation layer over data the other
// modules already maintain; nothing here writes anything.
package charts

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/marketdata"
	"github.com/aristath/vigil/internal/modules/portfolio"
	"github.com/aristath/vigil/pkg/formulas"
	"github.com/rs/zerolog"
)

// ChartDataPoint represents a single point on a chart
type ChartDataPoint struct {
	Time  string  `json:"time"` // YYYY-MM-DD, YYYY-W## or YYYY-MM depending on the bucket
	Value float64 `json:"value"`
}

// PriceChart bundles a symbol's close series with its indicator overlays.
// Overlay slices are shorter than the price slice when the warm-up window
// falls inside the requested range, and empty when history is too short
// to compute them at all.
type PriceChart struct {
	Symbol         string           `json:"symbol"`
	Price          []ChartDataPoint `json:"price"`
	SMA20          []ChartDataPoint `json:"sma_20,omitempty"`
	SMA50          []ChartDataPoint `json:"sma_50,omitempty"`
	BollingerUpper []ChartDataPoint `json:"bollinger_upper,omitempty"`
	BollingerLower []ChartDataPoint `json:"bollinger_lower,omitempty"`
}

// SnapshotSource supplies recorded portfolio values, oldest first.
// A non-positive days value means the full recorded history.
// Implemented by the portfolio module's snapshot repository.
type SnapshotSource interface {
	History(days int) ([]portfolio.Snapshot, error)
}

// BarSource supplies stored daily bars from a cutoff on, oldest first.
// Implemented by the market data history repository.
type BarSource interface {
	Bars(symbol string, cutoff int64) ([]marketdata.DailyPrice, error)
}

// Service provides chart data operations
type Service struct {
	snapshots SnapshotSource
	bars      BarSource
	log       zerolog.Logger
}

// NewService creates a new charts service
func NewService(snapshots SnapshotSource, bars BarSource, log zerolog.Logger) *Service {
	return &Service{
		snapshots: snapshots,
		bars:      bars,
		log:       log.With().Str("service", "charts").Logger(),
	}
}

// Aggregation buckets. Short ranges keep daily resolution; 1Y thins to
// ISO weeks and anything longer to months, so point counts stay bounded.
const (
	bucketDay   = "day"
	bucketWeek  = "week"
	bucketMonth = "month"
)

// ValueHistory returns the portfolio's recorded value over the range,
// averaged per day, ISO week or month depending on the range length.
func (s *Service) ValueHistory(rangeStr string) ([]ChartDataPoint, error) {
	startDate, bucket, err := rangeSpec(rangeStr)
	if err != nil {
		return nil, err
	}

	snapshots, err := s.snapshots.History(0)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}

	grouped := make(map[string][]float64)
	for _, snap := range snapshots {
		day := time.Unix(snap.CreatedAt, 0).UTC().Format("2006-01-02")
		if startDate != "" && day < startDate {
			continue
		}
		key := bucketKey(day, bucket)
		grouped[key] = append(grouped[key], snap.TotalValue)
	}

	return averages(grouped), nil
}

// PriceHistory returns a symbol's daily closes over the range, oldest first.
// No aggregation: price charts keep daily resolution at every range.
func (s *Service) PriceHistory(symbol string, rangeStr string) ([]ChartDataPoint, error) {
	startDate, _, err := rangeSpec(rangeStr)
	if err != nil {
		return nil, err
	}

	bars, err := s.bars.Bars(symbol, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	var points []ChartDataPoint
	for _, bar := range bars {
		day := time.Unix(bar.Date, 0).UTC().Format("2006-01-02")
		if startDate != "" && day < startDate {
			continue
		}
		points = append(points, ChartDataPoint{Time: day, Value: bar.Close})
	}

	return points, nil
}

// PriceWithIndicators returns a symbol's daily closes over the range plus
// 20/50-day moving averages and 20-day Bollinger bands. Indicators are
// computed over the full stored history before the range filter is applied,
// so a 1M chart still carries properly warmed-up overlays.
func (s *Service) PriceWithIndicators(symbol string, rangeStr string) (*PriceChart, error) {
	startDate, _, err := rangeSpec(rangeStr)
	if err != nil {
		return nil, err
	}

	bars, err := s.bars.Bars(symbol, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	closes := make([]float64, len(bars))
	days := make([]string, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		days[i] = time.Unix(bar.Date, 0).UTC().Format("2006-01-02")
	}

	sma20 := formulas.SMASeries(closes, 20)
	sma50 := formulas.SMASeries(closes, 50)
	bollUpper, _, bollLower := formulas.BollingerSeries(closes, 20, 2.0)

	chart := &PriceChart{Symbol: symbol}
	for i, day := range days {
		if startDate != "" && day < startDate {
			continue
		}
		chart.Price = append(chart.Price, ChartDataPoint{Time: day, Value: closes[i]})
		chart.SMA20 = appendIfComputed(chart.SMA20, day, sma20, i)
		chart.SMA50 = appendIfComputed(chart.SMA50, day, sma50, i)
		chart.BollingerUpper = appendIfComputed(chart.BollingerUpper, day, bollUpper, i)
		chart.BollingerLower = appendIfComputed(chart.BollingerLower, day, bollLower, i)
	}

	return chart, nil
}

// Sparklines returns aggregated close series for the given symbols, keyed by
// symbol. Symbols whose history cannot be read are skipped with a debug log;
// symbols with no points in the range are simply absent from the result.
func (s *Service) Sparklines(symbols []string, rangeStr string) (map[string][]ChartDataPoint, error) {
	startDate, bucket, err := rangeSpec(rangeStr)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]ChartDataPoint)
	for _, symbol := range symbols {
		bars, err := s.bars.Bars(symbol, 0)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("Failed to get prices for sparkline")
			continue
		}

		grouped := make(map[string][]float64)
		for _, bar := range bars {
			day := time.Unix(bar.Date, 0).UTC().Format("2006-01-02")
			if startDate != "" && day < startDate {
				continue
			}
			key := bucketKey(day, bucket)
			grouped[key] = append(grouped[key], bar.Close)
		}

		if points := averages(grouped); len(points) > 0 {
			result[symbol] = points
		}
	}

	return result, nil
}

// rangeSpec converts a range string to a start date (empty = unbounded) and
// an aggregation bucket.
func rangeSpec(rangeStr string) (startDate string, bucket string, err error) {
	now := time.Now()

	switch rangeStr {
	case "1M":
		return now.AddDate(0, -1, 0).Format("2006-01-02"), bucketDay, nil
	case "3M":
		return now.AddDate(0, -3, 0).Format("2006-01-02"), bucketDay, nil
	case "6M":
		return now.AddDate(0, -6, 0).Format("2006-01-02"), bucketDay, nil
	case "1Y":
		return now.AddDate(-1, 0, 0).Format("2006-01-02"), bucketWeek, nil
	case "5Y":
		return now.AddDate(-5, 0, 0).Format("2006-01-02"), bucketMonth, nil
	case "10Y":
		return now.AddDate(-10, 0, 0).Format("2006-01-02"), bucketMonth, nil
	case "all", "":
		return "", bucketMonth, nil
	default:
		return "", "", &domain.InvalidParameterError{
			Name: "range", Reason: "must be one of 1M, 3M, 6M, 1Y, 5Y, 10Y or all",
		}
	}
}

// bucketKey maps a YYYY-MM-DD day onto its aggregation bucket key.
func bucketKey(day string, bucket string) string {
	switch bucket {
	case bucketWeek:
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			return day
		}
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case bucketMonth:
		return day[:7]
	default:
		return day
	}
}

// averages collapses bucketed values into one averaged point per bucket,
// sorted by bucket key. Day, week and month keys all sort correctly as
// plain strings.
func averages(grouped map[string][]float64) []ChartDataPoint {
	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var points []ChartDataPoint
	for _, key := range keys {
		values := grouped[key]
		if len(values) == 0 {
			continue
		}

		var sum float64
		for _, v := range values {
			sum += v
		}

		points = append(points, ChartDataPoint{Time: key, Value: sum / float64(len(values))})
	}

	return points
}

// appendIfComputed appends the i-th series value unless it is a NaN warm-up.
func appendIfComputed(points []ChartDataPoint, day string, series []float64, i int) []ChartDataPoint {
	if i >= len(series) || series[i] != series[i] {
		return points
	}
	return append(points, ChartDataPoint{Time: day, Value: series[i]})
}
