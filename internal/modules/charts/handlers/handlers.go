// Package handlers provides HTTP handlers for chart data and PNG renders.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/vigil/internal/domain"
	"github.com/aristath/vigil/internal/modules/charts"
	"github.com/aristath/vigil/internal/modules/portfolio"
	"github.com/aristath/vigil/internal/modules/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AllocationSource supplies the live allocation table.
// Implemented by the portfolio module's service.
type AllocationSource interface {
	Allocations() ([]portfolio.AllocationRow, error)
	PortfolioWeights() (symbols []string, weights []float64, totalValue float64, err error)
}

// Handler handles chart HTTP requests. Data endpoints return JSON series;
// .png endpoints render the same series server-side.
type Handler struct {
	chartSvc     *charts.Service
	simSvc       *simulation.Service
	allocations  AllocationSource
	history      domain.HistorySource
	lookback     int
	simDefault   simulation.Options
	assetDefault simulation.Options
	log          zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(
	chartSvc *charts.Service,
	simSvc *simulation.Service,
	allocations AllocationSource,
	history domain.HistorySource,
	lookbackDays int,
	simDefault simulation.Options,
	assetDefault simulation.Options,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		chartSvc:     chartSvc,
		simSvc:       simSvc,
		allocations:  allocations,
		history:      history,
		lookback:     lookbackDays,
		simDefault:   simDefault,
		assetDefault: assetDefault,
		log:          log.With().Str("handler", "charts").Logger(),
	}
}

// HandleGetValueHistory handles GET /api/charts/value
func (h *Handler) HandleGetValueHistory(w http.ResponseWriter, r *http.Request) {
	points, err := h.chartSvc.ValueHistory(r.URL.Query().Get("range"))
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     points,
		"metadata": metadata(),
	})
}

// HandleGetValueHistoryPNG handles GET /api/charts/value.png
func (h *Handler) HandleGetValueHistoryPNG(w http.ResponseWriter, r *http.Request) {
	points, err := h.chartSvc.ValueHistory(r.URL.Query().Get("range"))
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	png, err := charts.RenderValueHistory(points)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writePNG(w, png)
}

// HandleGetPrice handles GET /api/charts/price/{symbol}
func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	rangeStr := r.URL.Query().Get("range")

	if r.URL.Query().Get("indicators") == "true" {
		chart, err := h.chartSvc.PriceWithIndicators(symbol, rangeStr)
		if err != nil {
			h.writeError(w, statusForError(err), err.Error())
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"data":     chart,
			"metadata": metadata(),
		})
		return
	}

	points, err := h.chartSvc.PriceHistory(symbol, rangeStr)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     map[string]interface{}{"symbol": symbol, "price": points},
		"metadata": metadata(),
	})
}

// HandleGetPricePNG handles GET /api/charts/price/{symbol}.png
// Indicator overlays are always included in the rendered variant.
func (h *Handler) HandleGetPricePNG(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	chart, err := h.chartSvc.PriceWithIndicators(symbol, r.URL.Query().Get("range"))
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	png, err := charts.RenderPriceChart(chart)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writePNG(w, png)
}

// HandleGetSparklines handles GET /api/charts/sparklines?symbols=A,B&range=1M
func (h *Handler) HandleGetSparklines(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "symbols query parameter is required")
		return
	}

	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if trimmed := strings.ToUpper(strings.TrimSpace(s)); trimmed != "" {
			symbols = append(symbols, trimmed)
		}
	}

	series, err := h.chartSvc.Sparklines(symbols, r.URL.Query().Get("range"))
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     series,
		"metadata": metadata(),
	})
}

// HandleGetAllocationPNG handles GET /api/charts/allocation.png
func (h *Handler) HandleGetAllocationPNG(w http.ResponseWriter, r *http.Request) {
	rows, err := h.allocations.Allocations()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	png, err := charts.RenderAllocations(rows)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writePNG(w, png)
}

// HandleGetOutcomesPNG handles GET /api/charts/simulation.png
// Runs a portfolio simulation with the configured defaults and renders the
// terminal-value histogram.
func (h *Handler) HandleGetOutcomesPNG(w http.ResponseWriter, r *http.Request) {
	symbols, weights, totalValue, err := h.allocations.PortfolioWeights()
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if len(symbols) == 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "portfolio is empty")
		return
	}

	pm, err := h.history.BuildPriceMatrix(symbols, h.lookback)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	weightBySymbol := make(map[string]float64, len(symbols))
	for i, sym := range symbols {
		weightBySymbol[sym] = weights[i]
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

	values, err := h.simSvc.SimulatePortfolioOutcomes(pm, aligned, totalValue, h.simDefault)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	png, err := charts.RenderOutcomeDistribution(values, totalValue)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writePNG(w, png)
}

// HandleGetScenarioPNG handles GET /api/charts/scenario/{symbol}.png
func (h *Handler) HandleGetScenarioPNG(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))

	series, err := h.history.PriceSeries(symbol, h.lookback)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	if len(series) == 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "no price history for symbol "+symbol)
		return
	}

	paths, err := h.simSvc.SimulateSingleAssetPaths(series, series[len(series)-1], h.assetDefault)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	bands := simulation.PathBands(paths, []float64{5, 25, 50, 75, 95})

	png, err := charts.RenderScenarioFan(symbol, bands)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writePNG(w, png)
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
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

func (h *Handler) writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write PNG response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
