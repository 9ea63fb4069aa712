// Package handlers provides HTTP handlers for plain-language risk insights.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/insights"
	"github.com/aristath/vigil/internal/modules/risk"
	"github.com/aristath/vigil/internal/modules/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ValuationSource supplies current portfolio value and per-holding weights.
// Implemented by the portfolio module's valuation service.
type ValuationSource interface {
	PortfolioWeights() (symbols []string, weights []float64, totalValue float64, err error)
}

// Handler handles insight HTTP requests
type Handler struct {
	riskSvc      *risk.Service
	simSvc       *simulation.Service
	valuation    ValuationSource
	history      domain.HistorySource
	lookback     int
	confidence   float64
	simDefault   simulation.Options
	assetDefault simulation.Options
	log          zerolog.Logger
}

// NewHandler creates a new insights handler
func NewHandler(
	riskSvc *risk.Service,
	simSvc *simulation.Service,
	valuation ValuationSource,
	history domain.HistorySource,
	lookbackDays int,
	defaultConfidence float64,
	simDefault simulation.Options,
	assetDefault simulation.Options,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		riskSvc:      riskSvc,
		simSvc:       simSvc,
		valuation:    valuation,
		history:      history,
		lookback:     lookbackDays,
		confidence:   defaultConfidence,
		simDefault:   simDefault,
		assetDefault: assetDefault,
		log:          log.With().Str("handler", "insights").Logger(),
	}
}

// HandleGetSummary handles GET /api/insights/summary
// VaR is the one facet that must compute; the others degrade to omission.
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	symbols, weights, totalValue, err := h.valuation.PortfolioWeights()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if len(symbols) == 0 {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"empty": true},
			"metadata": map[string]interface{}{
				"timestamp": time.Now().Format(time.RFC3339),
			},
		})
		return
	}

	pm, err := h.history.BuildPriceMatrix(symbols, h.lookback)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	aligned, excluded := alignWeights(symbols, weights, pm.Symbols())

	rm, err := pm.Returns()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	portfolioReturns, err := rm.PortfolioReturns(aligned)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	varAmount, err := h.riskSvc.MonetaryVaR(totalValue, portfolioReturns, h.confidence)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	cvarAmount, err := h.riskSvc.MonetaryCVaR(totalValue, portfolioReturns, h.confidence)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	input := insights.SummaryInput{
		PortfolioValue: totalValue,
		Confidence:     h.confidence,
		HorizonDays:    h.simDefault.HorizonDays,
		VaRAmount:      varAmount,
		CVaRAmount:     cvarAmount,
		Weights:        aligned,
	}

	if values, err := h.simSvc.SimulatePortfolioOutcomes(pm, aligned, totalValue, h.simDefault); err == nil {
		if stats, err := h.simSvc.Statistics(values, totalValue); err == nil {
			input.SimStats = stats
		}
	} else {
		h.log.Warn().Err(err).Msg("Skipping simulation facet in summary")
	}

	if decomp, err := h.riskSvc.RiskContribution(pm, aligned); err == nil {
		input.Contributions = decomp.Contributions
	} else {
		h.log.Warn().Err(err).Msg("Skipping contribution facet in summary")
	}

	if corr, err := h.riskSvc.CorrelationMatrix(pm); err == nil {
		input.Correlation = corr
	} else {
		h.log.Warn().Err(err).Msg("Skipping correlation facet in summary")
	}

	if vols, err := h.riskSvc.Volatilities(pm, true); err == nil {
		input.Volatilities = vols
	} else {
		h.log.Warn().Err(err).Msg("Skipping volatility facet in summary")
	}

	response := map[string]interface{}{
		"data": insights.BuildSummary(input),
		"metadata": map[string]interface{}{
			"timestamp":        time.Now().Format(time.RFC3339),
			"lookback_days":    h.lookback,
			"horizon_days":     h.simDefault.HorizonDays,
			"confidence":       h.confidence,
			"excluded_symbols": excluded,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetAssetInsight handles GET /api/insights/asset/{symbol}
func (h *Handler) HandleGetAssetInsight(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	series, err := h.history.PriceSeries(symbol, h.lookback)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if len(series) == 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "no price history for symbol "+symbol)
		return
	}

	currentPrice := series[len(series)-1]

	paths, err := h.simSvc.SimulateSingleAssetPaths(series, currentPrice, h.assetDefault)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	terminals := make([]float64, len(paths))
	for i, path := range paths {
		terminals[i] = path[len(path)-1]
	}

	insight := insights.ExplainScenarioPaths(currentPrice, terminals, h.assetDefault.HorizonDays)

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbol":        symbol,
			"current_price": currentPrice,
			"insight":       insight,
		},
		"metadata": map[string]interface{}{
			"timestamp":     time.Now().Format(time.RFC3339),
			"lookback_days": h.lookback,
			"horizon_days":  h.assetDefault.HorizonDays,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// alignWeights maps holding weights onto the matrix columns and renormalizes
// over the covered symbols. Requested symbols without history are returned
// separately so callers can surface them.
func alignWeights(symbols []string, weights []float64, covered []string) ([]float64, []string) {
	weightBySymbol := make(map[string]float64, len(symbols))
	for i, sym := range symbols {
		weightBySymbol[sym] = weights[i]
	}

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

	coveredSet := make(map[string]struct{}, len(covered))
	for _, sym := range covered {
		coveredSet[sym] = struct{}{}
	}

	excluded := []string{}
	for _, sym := range symbols {
		if _, ok := coveredSet[sym]; !ok {
			excluded = append(excluded, sym)
		}
	}

	return aligned, excluded
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
