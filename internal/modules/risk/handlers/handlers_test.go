package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/risk"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubValuation is a canned ValuationSource for tests
type stubValuation struct {
	symbols []string
	weights []float64
	total   float64
	err     error
}

func (s *stubValuation) PortfolioWeights() ([]string, []float64, float64, error) {
	return s.symbols, s.weights, s.total, s.err
}

// stubHistory serves a fixed price matrix regardless of the requested symbols
type stubHistory struct {
	matrix *domain.PriceMatrix
	series map[string][]float64
	err    error
}

func (s *stubHistory) BuildPriceMatrix(symbols []string, lookbackDays int) (*domain.PriceMatrix, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matrix, nil
}

func (s *stubHistory) PriceSeries(symbol string, lookbackDays int) ([]float64, error) {
	return s.series[symbol], nil
}

func testMatrix(t *testing.T) *domain.PriceMatrix {
	t.Helper()
	pm, err := domain.NewPriceMatrix([]string{"AAPL", "MSFT"}, [][]float64{
		{150, 300},
		{153, 297},
		{149, 305},
		{155, 310},
		{152, 303},
		{158, 312},
	})
	require.NoError(t, err)
	return pm
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	valuation := &stubValuation{
		symbols: []string{"AAPL", "MSFT"},
		weights: []float64{0.6, 0.4},
		total:   10000,
	}
	history := &stubHistory{matrix: testMatrix(t)}

	return NewHandler(risk.NewService(logger), valuation, history, 365, 0.95, logger)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestHandleGetMetrics(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/risk/metrics", nil)
	w := httptest.NewRecorder()

	handler.HandleGetMetrics(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	response := decodeResponse(t, w)
	assert.Contains(t, response, "data")
	assert.Contains(t, response, "metadata")

	data := response["data"].(map[string]interface{})
	metrics := data["metrics"].(map[string]interface{})
	assert.Contains(t, metrics, "var")
	assert.Contains(t, metrics, "cvar")
	assert.Contains(t, metrics, "annualized_volatility")
	assert.Contains(t, metrics, "max_drawdown")

	monetary := data["monetary"].(map[string]interface{})
	assert.InDelta(t, 10000.0, monetary["portfolio_value"].(float64), 1e-9)
	assert.GreaterOrEqual(t, monetary["var_amount"].(float64), 0.0)
}

func TestHandleGetMetrics_EmptyPortfolio(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(
		risk.NewService(logger),
		&stubValuation{},
		&stubHistory{},
		365, 0.95, logger,
	)

	req := httptest.NewRequest("GET", "/api/risk/metrics", nil)
	w := httptest.NewRecorder()

	handler.HandleGetMetrics(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, true, data["empty"])
	assert.InDelta(t, 0.0, data["var"].(float64), 1e-12)
}

func TestHandleGetMetrics_InvalidConfidence(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/risk/metrics?confidence=abc", nil)
	w := httptest.NewRecorder()

	handler.HandleGetMetrics(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetMetrics_ConfidenceOutOfRange(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/risk/metrics?confidence=1.0", nil)
	w := httptest.NewRecorder()

	handler.HandleGetMetrics(w, req)

	// Exactly 1.0 parses but fails core validation
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetMetrics_InsufficientHistory(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	// Two price rows yield a single return, not enough for metrics
	pm, err := domain.NewPriceMatrix([]string{"AAPL"}, [][]float64{{150}, {153}})
	require.NoError(t, err)

	handler := NewHandler(
		risk.NewService(logger),
		&stubValuation{symbols: []string{"AAPL"}, weights: []float64{1.0}, total: 5000},
		&stubHistory{matrix: pm},
		365, 0.95, logger,
	)

	req := httptest.NewRequest("GET", "/api/risk/metrics", nil)
	w := httptest.NewRecorder()

	handler.HandleGetMetrics(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleGetContributions(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/risk/contributions", nil)
	w := httptest.NewRecorder()

	handler.HandleGetContributions(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]interface{})
	contributions := data["contributions"].([]interface{})
	require.Len(t, contributions, 2)

	total := 0.0
	for _, raw := range contributions {
		c := raw.(map[string]interface{})
		total += c["percent"].(float64)
	}
	assert.InDelta(t, 100.0, total, 1e-6)
}

func TestHandleGetCorrelation(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/risk/correlation", nil)
	w := httptest.NewRecorder()

	handler.HandleGetCorrelation(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]interface{})

	values := data["values"].([]interface{})
	require.Len(t, values, 2)

	row0 := values[0].([]interface{})
	assert.InDelta(t, 1.0, row0[0].(float64), 1e-12)
}

func TestHandleGetVolatilities(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/risk/volatilities", nil)
	w := httptest.NewRecorder()

	handler.HandleGetVolatilities(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, true, data["annualized"])

	vols := data["volatilities"].([]interface{})
	require.Len(t, vols, 2)

	first := vols[0].(map[string]interface{})
	assert.Equal(t, "AAPL", first["symbol"])
	assert.Greater(t, first["volatility"].(float64), 0.0)
}

func TestHandleGetSummary(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/risk/summary", nil)
	w := httptest.NewRecorder()

	handler.HandleGetSummary(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse(t, w)
	data := response["data"].(map[string]interface{})
	assert.Contains(t, data, "metrics")
	assert.Contains(t, data, "monetary")
	assert.Contains(t, data, "contributions")
	assert.Contains(t, data, "correlation")
}

func TestPortfolioView_ExcludedSymbols(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	// Valuation tracks three symbols but history only covers two
	handler := NewHandler(
		risk.NewService(logger),
		&stubValuation{
			symbols: []string{"AAPL", "MSFT", "NEWIPO"},
			weights: []float64{0.5, 0.3, 0.2},
			total:   10000,
		},
		&stubHistory{matrix: testMatrix(t)},
		365, 0.95, logger,
	)

	req := httptest.NewRequest("GET", "/api/risk/metrics", nil)
	w := httptest.NewRecorder()

	handler.HandleGetMetrics(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	response := decodeResponse(t, w)
	metadata := response["metadata"].(map[string]interface{})
	excluded := metadata["excluded_symbols"].([]interface{})
	require.Len(t, excluded, 1)
	assert.Equal(t, "NEWIPO", excluded[0])
}
