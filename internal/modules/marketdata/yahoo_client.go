package marketdata

import (
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// YahooClient fetches quotes and daily bars from Yahoo Finance
type YahooClient struct {
	log zerolog.Logger
}

// NewYahooClient creates a new Yahoo Finance client
func NewYahooClient(log zerolog.Logger) *YahooClient {
	return &YahooClient{log: log.With().Str("client", "yahoo").Logger()}
}

// FetchDailyHistory returns daily bars for the symbol between start and end.
// Open/high/low are rescaled by the AdjClose/Close factor on decimals before
// float conversion, so the whole bar is consistent with the adjusted close.
func (c *YahooClient) FetchDailyHistory(symbol string, start, end time.Time) ([]DailyPrice, error) {
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	var prices []DailyPrice
	for iter.Next() {
		bar := iter.Bar()

		day := time.Unix(int64(bar.Timestamp), 0).UTC()
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

		factor := decimal.NewFromInt(1)
		if !bar.Close.IsZero() {
			factor = bar.AdjClose.Div(bar.Close)
		}

		prices = append(prices, DailyPrice{
			Symbol:   symbol,
			Date:     day.Unix(),
			Open:     bar.Open.Mul(factor).InexactFloat64(),
			High:     bar.High.Mul(factor).InexactFloat64(),
			Low:      bar.Low.Mul(factor).InexactFloat64(),
			Close:    bar.Close.InexactFloat64(),
			AdjClose: bar.AdjClose.InexactFloat64(),
			Volume:   int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", symbol, err)
	}

	c.log.Debug().Str("symbol", symbol).Int("bars", len(prices)).Msg("History fetched")
	return prices, nil
}

// FetchQuote returns the live quote for one symbol
func (c *YahooClient) FetchQuote(symbol string) (*Quote, error) {
	q, err := quote.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	if q == nil {
		return nil, fmt.Errorf("no quote returned for %s", symbol)
	}

	return &Quote{
		Symbol:        symbol,
		Name:          q.ShortName,
		Price:         q.RegularMarketPrice,
		PreviousClose: q.RegularMarketPreviousClose,
		ChangePct:     q.RegularMarketChangePercent,
		FetchedAt:     time.Now().Unix(),
	}, nil
}

// FetchQuotes returns live quotes for the symbols, keyed by symbol.
// Symbols that fail to resolve are logged and skipped, never fatal.
func (c *YahooClient) FetchQuotes(symbols []string) (map[string]*Quote, error) {
	if len(symbols) == 0 {
		return map[string]*Quote{}, nil
	}

	now := time.Now().Unix()
	quotes := make(map[string]*Quote, len(symbols))

	iter := quote.List(symbols)
	for iter.Next() {
		q := iter.Quote()
		if q == nil {
			continue
		}
		quotes[q.Symbol] = &Quote{
			Symbol:        q.Symbol,
			Name:          q.ShortName,
			Price:         q.RegularMarketPrice,
			PreviousClose: q.RegularMarketPreviousClose,
			ChangePct:     q.RegularMarketChangePercent,
			FetchedAt:     now,
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}

	for _, sym := range symbols {
		if _, ok := quotes[sym]; !ok {
			c.log.Warn().Str("symbol", sym).Msg("No quote returned, skipping")
		}
	}

	return quotes, nil
}
