// Package handlers provides HTTP handlers for risk analytics operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/risk"
	"github.com/rs/zerolog"
)

// ValuationSource supplies current portfolio value and per-holding weights.
// Implemented by the portfolio module's valuation service; declared here so
// handlers can be tested with a stub.
type ValuationSource interface {
	PortfolioWeights() (symbols []string, weights []float64, totalValue float64, err error)
}

// Handler handles risk analytics HTTP requests
type Handler struct {
	riskSvc    *risk.Service
	valuation  ValuationSource
	history    domain.HistorySource
	lookback   int
	confidence float64
	log        zerolog.Logger
}

// NewHandler creates a new risk analytics handler
func NewHandler(
	riskSvc *risk.Service,
	valuation ValuationSource,
	history domain.HistorySource,
	lookbackDays int,
	defaultConfidence float64,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		riskSvc:    riskSvc,
		valuation:  valuation,
		history:    history,
		lookback:   lookbackDays,
		confidence: defaultConfidence,
		log:        log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetMetrics handles GET /api/risk/metrics
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	confidence, err := h.confidenceParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, empty, err := h.portfolioView()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if empty {
		h.writeJSON(w, http.StatusOK, emptyResponse(map[string]interface{}{
			"var": 0.0, "cvar": 0.0, "volatility": 0.0,
			"annualized_volatility": 0.0, "max_drawdown": 0.0,
			"portfolio_value": 0.0,
		}))
		return
	}

	portfolioReturns, err := view.returns.PortfolioReturns(view.weights)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	metrics, err := h.riskSvc.Metrics(portfolioReturns, confidence)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	varAmount, err := h.riskSvc.MonetaryVaR(view.totalValue, portfolioReturns, confidence)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	cvarAmount, err := h.riskSvc.MonetaryCVaR(view.totalValue, portfolioReturns, confidence)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"metrics": metrics,
			"monetary": risk.MonetaryMetrics{
				VaRAmount:      varAmount,
				CVaRAmount:     cvarAmount,
				PortfolioValue: view.totalValue,
				Confidence:     confidence,
			},
		},
		"metadata": h.metadata(view),
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetContributions handles GET /api/risk/contributions
func (h *Handler) HandleGetContributions(w http.ResponseWriter, r *http.Request) {
	view, empty, err := h.portfolioView()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if empty {
		h.writeJSON(w, http.StatusOK, emptyResponse(map[string]interface{}{
			"contributions": []interface{}{},
		}))
		return
	}

	decomp, err := h.riskSvc.RiskContribution(view.prices, view.weights)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"data":     decomp,
		"metadata": h.metadata(view),
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetCorrelation handles GET /api/risk/correlation
func (h *Handler) HandleGetCorrelation(w http.ResponseWriter, r *http.Request) {
	view, empty, err := h.portfolioView()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if empty {
		h.writeJSON(w, http.StatusOK, emptyResponse(map[string]interface{}{
			"symbols": []interface{}{}, "values": []interface{}{},
		}))
		return
	}

	corr, err := h.riskSvc.CorrelationMatrix(view.prices)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbols":          corr.Symbols,
			"values":           corr.Values,
			"average_off_diag": corr.AverageOffDiagonal(),
		},
		"metadata": h.metadata(view),
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetVolatilities handles GET /api/risk/volatilities
func (h *Handler) HandleGetVolatilities(w http.ResponseWriter, r *http.Request) {
	annualized := r.URL.Query().Get("annualized") != "false"

	view, empty, err := h.portfolioView()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if empty {
		h.writeJSON(w, http.StatusOK, emptyResponse(map[string]interface{}{
			"volatilities": []interface{}{},
		}))
		return
	}

	vols, err := h.riskSvc.Volatilities(view.prices, annualized)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"volatilities": vols,
			"annualized":   annualized,
		},
		"metadata": h.metadata(view),
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetSummary handles GET /api/risk/summary
// Aggregates metrics, decomposition and correlation into one payload.
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	confidence, err := h.confidenceParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, empty, err := h.portfolioView()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if empty {
		h.writeJSON(w, http.StatusOK, emptyResponse(map[string]interface{}{
			"metrics": nil, "contributions": []interface{}{}, "correlation": nil,
		}))
		return
	}

	portfolioReturns, err := view.returns.PortfolioReturns(view.weights)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	metrics, err := h.riskSvc.Metrics(portfolioReturns, confidence)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	varAmount, err := h.riskSvc.MonetaryVaR(view.totalValue, portfolioReturns, confidence)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	cvarAmount, err := h.riskSvc.MonetaryCVaR(view.totalValue, portfolioReturns, confidence)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	// Decomposition and correlation are best-effort in the summary: a
	// degenerate covariance should not hide the headline metrics.
	var contributions interface{} = []interface{}{}
	if decomp, err := h.riskSvc.RiskContribution(view.prices, view.weights); err == nil {
		contributions = decomp.Contributions
	} else {
		h.log.Warn().Err(err).Msg("Skipping risk contributions in summary")
	}

	var correlation interface{}
	if corr, err := h.riskSvc.CorrelationMatrix(view.prices); err == nil {
		correlation = map[string]interface{}{
			"symbols":          corr.Symbols,
			"values":           corr.Values,
			"average_off_diag": corr.AverageOffDiagonal(),
		}
	} else {
		h.log.Warn().Err(err).Msg("Skipping correlation matrix in summary")
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"metrics": metrics,
			"monetary": risk.MonetaryMetrics{
				VaRAmount:      varAmount,
				CVaRAmount:     cvarAmount,
				PortfolioValue: view.totalValue,
				Confidence:     confidence,
			},
			"contributions": contributions,
			"correlation":   correlation,
		},
		"metadata": h.metadata(view),
	}
	h.writeJSON(w, http.StatusOK, response)
}

// portfolioView is the assembled input set for portfolio-level risk analysis
type portfolioView struct {
	prices     *domain.PriceMatrix
	returns    *domain.ReturnMatrix
	weights    []float64
	totalValue float64
	excluded   []string
}

// portfolioView loads holdings, builds the aligned price matrix and
// renormalizes weights over the symbols that have usable history.
// Symbols without history are reported in metadata, not silently lost.
func (h *Handler) portfolioView() (*portfolioView, bool, error) {
	symbols, weights, totalValue, err := h.valuation.PortfolioWeights()
	if err != nil {
		return nil, false, err
	}
	if len(symbols) == 0 {
		return nil, true, nil
	}

	weightBySymbol := make(map[string]float64, len(symbols))
	for i, sym := range symbols {
		weightBySymbol[sym] = weights[i]
	}

	pm, err := h.history.BuildPriceMatrix(symbols, h.lookback)
	if err != nil {
		return nil, false, err
	}

	covered := pm.Symbols()
	aligned := make([]float64, len(covered))
	total := 0.0
	for i, sym := range covered {
		aligned[i] = weightBySymbol[sym]
		total += aligned[i]
	}
	if total > 0 {
		for i := range aligned {
			aligned[i] /= total
		}
	}

	var excluded []string
	if len(covered) < len(symbols) {
		coveredSet := make(map[string]struct{}, len(covered))
		for _, sym := range covered {
			coveredSet[sym] = struct{}{}
		}
		for _, sym := range symbols {
			if _, ok := coveredSet[sym]; !ok {
				excluded = append(excluded, sym)
			}
		}
	}

	rm, err := pm.Returns()
	if err != nil {
		return nil, false, err
	}

	return &portfolioView{
		prices:     pm,
		returns:    rm,
		weights:    aligned,
		totalValue: totalValue,
		excluded:   excluded,
	}, false, nil
}

func (h *Handler) metadata(view *portfolioView) map[string]interface{} {
	excluded := view.excluded
	if excluded == nil {
		excluded = []string{}
	}
	return map[string]interface{}{
		"timestamp":        time.Now().Format(time.RFC3339),
		"lookback_days":    h.lookback,
		"observations":     view.returns.NumRows(),
		"excluded_symbols": excluded,
	}
}

// confidenceParam reads the optional ?confidence= override
func (h *Handler) confidenceParam(r *http.Request) (float64, error) {
	raw := r.URL.Query().Get("confidence")
	if raw == "" {
		return h.confidence, nil
	}

	confidence, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &domain.InvalidParameterError{Name: "confidence", Reason: "not a number"}
	}
	return confidence, nil
}

func emptyResponse(data map[string]interface{}) map[string]interface{} {
	data["empty"] = true
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// statusForError maps typed domain errors to HTTP status codes
func statusForError(err error) int {
	var invalidErr *domain.InvalidParameterError
	var dimErr *domain.DimensionMismatchError
	var insufficientErr *domain.InsufficientDataError
	var varianceErr *domain.DegenerateVarianceError
	var sampleErr *domain.DegenerateSampleError

	switch {
	case errors.As(err, &invalidErr), errors.As(err, &dimErr):
		return http.StatusBadRequest
	case errors.As(err, &insufficientErr), errors.As(err, &varianceErr), errors.As(err, &sampleErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
