// Package handlers provides HTTP handlers for Monte Carlo simulation operations.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ValuationSource supplies current portfolio value and per-holding weights.
// Implemented by the portfolio module's valuation service.
type ValuationSource interface {
	PortfolioWeights() (symbols []string, weights []float64, totalValue float64, err error)
}

// Handler handles simulation HTTP requests
type Handler struct {
	simSvc           *simulation.Service
	valuation        ValuationSource
	history          domain.HistorySource
	lookback         int
	portfolioDefault simulation.Options
	assetDefault     simulation.Options
	log              zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(
	simSvc *simulation.Service,
	valuation ValuationSource,
	history domain.HistorySource,
	lookbackDays int,
	portfolioDefault simulation.Options,
	assetDefault simulation.Options,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		simSvc:           simSvc,
		valuation:        valuation,
		history:          history,
		lookback:         lookbackDays,
		portfolioDefault: portfolioDefault,
		assetDefault:     assetDefault,
		log:              log.With().Str("handler", "simulation").Logger(),
	}
}

// simulationRequest carries optional overrides for a simulation run.
// Seed is a pointer so an explicit zero seed survives JSON decoding.
type simulationRequest struct {
	HorizonDays    int     `json:"horizon_days"`
	NumSimulations int     `json:"n_simulations"`
	Seed           *uint64 `json:"seed"`
}

// HandleSimulatePortfolio handles POST /api/simulation/portfolio
func (h *Handler) HandleSimulatePortfolio(w http.ResponseWriter, r *http.Request) {
	opts, err := h.parseOptions(r, h.portfolioDefault)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	symbols, weights, totalValue, err := h.valuation.PortfolioWeights()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get portfolio weights")
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

	values, err := h.simSvc.SimulatePortfolioOutcomes(pm, aligned, totalValue, opts)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	stats, err := h.simSvc.Statistics(values, totalValue)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	lossDist, err := h.simSvc.LossDistribution(values, totalValue)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"statistics":        stats,
			"loss_distribution": lossDist,
			"options":           opts,
		},
		"metadata": map[string]interface{}{
			"timestamp":        time.Now().Format(time.RFC3339),
			"lookback_days":    h.lookback,
			"excluded_symbols": excluded,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleSimulateAsset handles POST /api/simulation/asset/{symbol}
func (h *Handler) HandleSimulateAsset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	opts, err := h.parseOptions(r, h.assetDefault)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

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

	paths, err := h.simSvc.SimulateSingleAssetPaths(series, currentPrice, opts)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	terminals := make([]float64, len(paths))
	for i, path := range paths {
		terminals[i] = path[len(path)-1]
	}

	stats, err := h.simSvc.Statistics(terminals, currentPrice)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	bands := simulation.PathBands(paths, []float64{5, 25, 50, 75, 95})

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"symbol":        symbol,
			"current_price": currentPrice,
			"statistics":    stats,
			"bands":         bands,
			"options":       opts,
		},
		"metadata": map[string]interface{}{
			"timestamp":     time.Now().Format(time.RFC3339),
			"lookback_days": h.lookback,
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// parseOptions merges the request body with the configured defaults
func (h *Handler) parseOptions(r *http.Request, defaults simulation.Options) (simulation.Options, error) {
	opts := defaults

	var req simulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// An empty body means "use defaults"
		if errors.Is(err, io.EOF) {
			return opts, nil
		}
		return simulation.Options{}, errors.New("invalid request body")
	}

	if req.HorizonDays != 0 {
		opts.HorizonDays = req.HorizonDays
	}
	if req.NumSimulations != 0 {
		opts.NumSimulations = req.NumSimulations
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}

	return opts, nil
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
