package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/charts"
	"github.com/aristath/vigil/internal/modules/marketdata"
	"github.com/aristath/vigil/internal/modules/portfolio"
	"github.com/aristath/vigil/internal/modules/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSnapshots struct {
	snapshots []portfolio.Snapshot
	err       error
}

func (s *stubSnapshots) History(days int) ([]portfolio.Snapshot, error) {
	return s.snapshots, s.err
}

type stubBars struct {
	bars map[string][]marketdata.DailyPrice
	err  error
}

func (s *stubBars) Bars(symbol string, cutoff int64) ([]marketdata.DailyPrice, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.bars[symbol], nil
}

type stubAllocations struct {
	rows    []portfolio.AllocationRow
	symbols []string
	weights []float64
	total   float64
	err     error
}

func (s *stubAllocations) Allocations() ([]portfolio.AllocationRow, error) {
	return s.rows, s.err
}

func (s *stubAllocations) PortfolioWeights() ([]string, []float64, float64, error) {
	return s.symbols, s.weights, s.total, s.err
}

type stubHistory struct {
	matrix *domain.PriceMatrix
	series []float64
	err    error
}

func (s *stubHistory) BuildPriceMatrix(symbols []string, lookbackDays int) (*domain.PriceMatrix, error) {
	return s.matrix, s.err
}

func (s *stubHistory) PriceSeries(symbol string, lookbackDays int) ([]float64, error) {
	return s.series, s.err
}

func recentBars(symbol string, closes ...float64) []marketdata.DailyPrice {
	bars := make([]marketdata.DailyPrice, len(closes))
	for i, c := range closes {
		bars[i] = marketdata.DailyPrice{
			Symbol: symbol,
			Date:   time.Now().AddDate(0, 0, -(len(closes) - i)).Unix(),
			Close:  c,
		}
	}
	return bars
}

func newTestHandler(t *testing.T, snaps *stubSnapshots, bars *stubBars, alloc *stubAllocations, history *stubHistory) *Handler {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	chartSvc := charts.NewService(snaps, bars, log)
	simSvc := simulation.NewService(log)
	portfolioOpts := simulation.Options{HorizonDays: 5, NumSimulations: 100, Seed: 42}
	assetOpts := simulation.Options{HorizonDays: 5, NumSimulations: 50, Seed: 42}
	return NewHandler(chartSvc, simSvc, alloc, history, 365, portfolioOpts, assetOpts, log)
}

func serveCharts(h *Handler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleGetValueHistory(t *testing.T) {
	snaps := &stubSnapshots{snapshots: []portfolio.Snapshot{
		{TotalValue: 10000, CreatedAt: time.Now().AddDate(0, 0, -5).Unix()},
		{TotalValue: 10300, CreatedAt: time.Now().AddDate(0, 0, -2).Unix()},
	}}
	h := newTestHandler(t, snaps, &stubBars{}, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/value?range=1M")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	require.Contains(t, body, "data")
	require.Contains(t, body, "metadata")
	assert.Len(t, body["data"], 2)
}

func TestHandleGetValueHistory_InvalidRange(t *testing.T) {
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/value?range=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeResponse(t, rec)
	assert.Contains(t, body["error"], "range")
}

func TestHandleGetValueHistoryPNG(t *testing.T) {
	snaps := &stubSnapshots{snapshots: []portfolio.Snapshot{
		{TotalValue: 10000, CreatedAt: time.Now().AddDate(0, 0, -5).Unix()},
		{TotalValue: 10300, CreatedAt: time.Now().AddDate(0, 0, -2).Unix()},
	}}
	h := newTestHandler(t, snaps, &stubBars{}, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/value.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Greater(t, rec.Body.Len(), 8)
}

func TestHandleGetValueHistoryPNG_NoHistory(t *testing.T) {
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/value.png")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleGetPrice(t *testing.T) {
	bars := &stubBars{bars: map[string][]marketdata.DailyPrice{
		"AAPL": recentBars("AAPL", 150, 152, 151),
	}}
	h := newTestHandler(t, &stubSnapshots{}, bars, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/price/aapl?range=1M")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "AAPL", data["symbol"], "symbol should be uppercased")
	assert.Len(t, data["price"], 3)
}

func TestHandleGetPrice_WithIndicators(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := &stubBars{bars: map[string][]marketdata.DailyPrice{
		"AAPL": recentBars("AAPL", closes...),
	}}
	h := newTestHandler(t, &stubSnapshots{}, bars, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/price/AAPL?range=all&indicators=true")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Contains(t, data, "sma_20")
	assert.Contains(t, data, "bollinger_upper")
}

func TestHandleGetSparklines(t *testing.T) {
	bars := &stubBars{bars: map[string][]marketdata.DailyPrice{
		"AAPL": recentBars("AAPL", 150, 152),
		"MSFT": recentBars("MSFT", 300, 305),
	}}
	h := newTestHandler(t, &stubSnapshots{}, bars, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/sparklines?symbols=aapl,%20msft&range=1M")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeResponse(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Contains(t, data, "AAPL")
	assert.Contains(t, data, "MSFT")
}

func TestHandleGetSparklines_MissingSymbols(t *testing.T) {
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/sparklines?range=1M")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetAllocationPNG(t *testing.T) {
	alloc := &stubAllocations{rows: []portfolio.AllocationRow{
		{Symbol: "AAPL", CurrentValue: 4500},
		{Symbol: "MSFT", CurrentValue: 3000},
	}}
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, alloc, &stubHistory{})

	rec := serveCharts(h, "/charts/allocation.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestHandleGetAllocationPNG_EmptyPortfolio(t *testing.T) {
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/allocation.png")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleGetOutcomesPNG(t *testing.T) {
	pm, err := domain.NewPriceMatrix(
		[]string{"AAPL", "MSFT"},
		[][]float64{
			{150.0, 300.0},
			{151.5, 297.0},
			{149.0, 301.5},
			{152.0, 305.0},
			{153.5, 303.0},
			{155.0, 308.0},
		},
	)
	require.NoError(t, err)

	alloc := &stubAllocations{
		symbols: []string{"AAPL", "MSFT"},
		weights: []float64{0.6, 0.4},
		total:   10000,
	}
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, alloc, &stubHistory{matrix: pm})

	rec := serveCharts(h, "/charts/simulation.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestHandleGetOutcomesPNG_EmptyPortfolio(t *testing.T) {
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/simulation.png")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleGetScenarioPNG(t *testing.T) {
	history := &stubHistory{series: []float64{100, 101, 99.5, 102, 103, 104.5, 103.5, 106}}
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, &stubAllocations{}, history)

	rec := serveCharts(h, "/charts/scenario/AAPL.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestHandleGetScenarioPNG_NoHistory(t *testing.T) {
	h := newTestHandler(t, &stubSnapshots{}, &stubBars{}, &stubAllocations{}, &stubHistory{})

	rec := serveCharts(h, "/charts/scenario/AAPL.png")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
