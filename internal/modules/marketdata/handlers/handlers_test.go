package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/vigil/internal/modules/marketdata"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

type stubFetcher struct {
	bars   map[string][]marketdata.DailyPrice
	quotes map[string]*marketdata.Quote
}

func (f *stubFetcher) FetchDailyHistory(symbol string, start, end time.Time) ([]marketdata.DailyPrice, error) {
	if bars, ok := f.bars[symbol]; ok {
		return bars, nil
	}
	return nil, errors.New("symbol not found")
}

func (f *stubFetcher) FetchQuote(symbol string) (*marketdata.Quote, error) {
	if q, ok := f.quotes[symbol]; ok {
		return q, nil
	}
	return nil, errors.New("symbol not found")
}

func (f *stubFetcher) FetchQuotes(symbols []string) (map[string]*marketdata.Quote, error) {
	result := make(map[string]*marketdata.Quote)
	for _, sym := range symbols {
		if q, ok := f.quotes[sym]; ok {
			result[sym] = q
		}
	}
	return result, nil
}

type testEnv struct {
	router  chi.Router
	history *marketdata.HistoryRepository
	fetcher *stubFetcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE daily_prices (
			symbol TEXT NOT NULL,
			date INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			adj_close REAL NOT NULL,
			volume INTEGER NOT NULL,
			PRIMARY KEY (symbol, date)
		);
		CREATE TABLE quote_cache (
			symbol TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			cached_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	fetcher := &stubFetcher{}
	history := marketdata.NewHistoryRepository(db, log)
	cache := marketdata.NewQuoteCache(db, time.Minute, log)
	service := marketdata.NewService(fetcher, history, cache, log)

	handler := NewHandler(service, 365, log)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, history: history, fetcher: fetcher}
}

func (env *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func (env *testEnv) seedBars(t *testing.T, symbol string, closes ...float64) {
	t.Helper()
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	bars := make([]marketdata.DailyPrice, len(closes))
	for i, close := range closes {
		bars[i] = marketdata.DailyPrice{
			Symbol:   symbol,
			Date:     midnight.AddDate(0, 0, i-len(closes)-1).Unix(),
			Open:     close,
			High:     close,
			Low:      close,
			Close:    close,
			AdjClose: close,
			Volume:   1000,
		}
	}
	_, err := env.history.Upsert(bars)
	require.NoError(t, err)
}

func TestHandleGetQuotes(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.quotes = map[string]*marketdata.Quote{
		"AAPL": {Symbol: "AAPL", Price: 185.5},
		"MSFT": {Symbol: "MSFT", Price: 410.0},
	}

	rec := env.do(t, http.MethodGet, "/marketdata/quotes?symbols=aapl,MSFT", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	quotes := body["data"].(map[string]interface{})["quotes"].(map[string]interface{})
	require.Len(t, quotes, 2)
	assert.Equal(t, 185.5, quotes["AAPL"].(map[string]interface{})["price"])

	missing := body["metadata"].(map[string]interface{})["missing_symbols"].([]interface{})
	assert.Empty(t, missing)
}

func TestHandleGetQuotes_ReportsMissing(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.quotes = map[string]*marketdata.Quote{
		"AAPL": {Symbol: "AAPL", Price: 185.5},
	}

	rec := env.do(t, http.MethodGet, "/marketdata/quotes?symbols=AAPL,NOPE", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	missing := body["metadata"].(map[string]interface{})["missing_symbols"].([]interface{})
	assert.Equal(t, []interface{}{"NOPE"}, missing)
}

func TestHandleGetQuotes_RequiresSymbols(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/marketdata/quotes", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedBars(t, "AAPL", 150.0, 151.0, 152.0)

	rec := env.do(t, http.MethodGet, "/marketdata/history/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "AAPL", data["symbol"])
	bars := data["bars"].([]interface{})
	require.Len(t, bars, 3)
	assert.Equal(t, 152.0, bars[2].(map[string]interface{})["adj_close"])

	meta := body["metadata"].(map[string]interface{})
	assert.Equal(t, 3.0, meta["count"])
}

func TestHandleGetHistory_EmptyIsOK(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/marketdata/history/GHOST", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Empty(t, data["bars"])
}

func TestHandleGetHistory_BadDays(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/marketdata/history/AAPL?days=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/marketdata/history/AAPL?days=-5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetSummary(t *testing.T) {
	env := newTestEnv(t)
	env.seedBars(t, "AAPL", 100.0, 110.0, 99.0, 108.9)

	rec := env.do(t, http.MethodGet, "/marketdata/summary/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "AAPL", data["symbol"])
	assert.Equal(t, 4.0, data["rows"])
	assert.Equal(t, 99.0, data["min_close"])
	assert.Equal(t, 110.0, data["max_close"])
	assert.Greater(t, data["annualized_volatility"].(float64), 0.0)
}

func TestHandleGetSummary_InsufficientHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seedBars(t, "AAPL", 150.0)

	rec := env.do(t, http.MethodGet, "/marketdata/summary/AAPL", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleGetIndicators(t *testing.T) {
	env := newTestEnv(t)
	env.seedBars(t, "AAPL", 150.0, 151.0, 152.0)

	rec := env.do(t, http.MethodGet, "/marketdata/indicators/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "AAPL", data["symbol"])
	assert.Equal(t, 152.0, data["last_close"])

	// Three closes are not enough for any indicator window.
	assert.NotContains(t, data, "rsi_14")
	assert.NotContains(t, data, "sma_20")
}

func TestHandleGetIndicators_NoHistory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/marketdata/indicators/GHOST", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleGetQuality(t *testing.T) {
	env := newTestEnv(t)
	env.seedBars(t, "AAPL", 150.0, 151.0, 152.0)
	env.seedBars(t, "MSFT", 300.0, 302.0)

	rec := env.do(t, http.MethodGet, "/marketdata/quality", "")
	require.Equal(t, http.StatusOK, rec.Code)

	reports := decodeBody(t, rec)["data"].(map[string]interface{})["reports"].([]interface{})
	require.Len(t, reports, 2)

	rec = env.do(t, http.MethodGet, "/marketdata/quality?symbol=aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)

	report := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "AAPL", report["symbol"])
	assert.Equal(t, 3.0, report["rows"])
}

func TestHandleRefresh(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	env.fetcher.bars = map[string][]marketdata.DailyPrice{
		"AAPL": {
			{Symbol: "AAPL", Date: midnight.AddDate(0, 0, -3).Unix(), Open: 150, High: 150, Low: 150, Close: 150, AdjClose: 150, Volume: 1},
			{Symbol: "AAPL", Date: midnight.AddDate(0, 0, -2).Unix(), Open: 151, High: 151, Low: 151, Close: 151, AdjClose: 151, Volume: 1},
		},
	}

	rec := env.do(t, http.MethodPost, "/marketdata/refresh", `{"symbols": ["aapl"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, 2.0, data["total"])
	counts := data["counts"].(map[string]interface{})
	assert.Equal(t, 2.0, counts["AAPL"])

	bars, err := env.history.Bars("AAPL", 0)
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestHandleRefresh_DefaultsToTrackedSymbols(t *testing.T) {
	env := newTestEnv(t)
	env.seedBars(t, "AAPL", 150.0)
	env.fetcher.bars = map[string][]marketdata.DailyPrice{"AAPL": nil}

	rec := env.do(t, http.MethodPost, "/marketdata/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	counts := data["counts"].(map[string]interface{})
	assert.Contains(t, counts, "AAPL")
}

func TestHandleRefresh_NothingTracked(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/marketdata/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, 0.0, data["total"])
}

func TestHandleRefresh_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/marketdata/refresh", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleValidateSymbol(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.quotes = map[string]*marketdata.Quote{
		"AAPL": {Symbol: "AAPL", Price: 185.5},
	}

	rec := env.do(t, http.MethodGet, "/marketdata/validate/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, true, data["valid"])

	rec = env.do(t, http.MethodGet, "/marketdata/validate/NOPE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, false, data["valid"])
}
