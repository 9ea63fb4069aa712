package charts

import (
	"fmt"
	"math"

	charts "github.com/vicanso/go-charts/v2"

	"github.com/aristath/vigil/internal/modules/portfolio"
	"github.com/aristath/vigil/internal/modules/simulation"
)

// PNG renderers for the dashboard. Everything here consumes numbers the
// analytics modules already produced; no metric is recomputed for display.

const (
	renderWidth  = 1000
	renderHeight = 600

	distributionBins = 50
)

// RenderValueHistory renders the portfolio value series as a line chart.
func RenderValueHistory(points []ChartDataPoint) ([]byte, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no portfolio value history to render")
	}

	values := make([]float64, len(points))
	labels := make([]string, len(points))
	for i, p := range points {
		values[i] = p.Value
		labels[i] = p.Time
	}

	painter, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc("Portfolio Value"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: splitNumberFor(len(labels)),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(renderWidth),
		charts.HeightOptionFunc(renderHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render value history chart: %w", err)
	}
	return painter.Bytes()
}

// RenderPriceChart renders a symbol's close series with whatever indicator
// overlays were computed. Overlays shorter than the price series are
// left-padded with NaN so every line shares the price x-axis.
func RenderPriceChart(pc *PriceChart) ([]byte, error) {
	if pc == nil || len(pc.Price) == 0 {
		return nil, fmt.Errorf("no price history to render")
	}

	labels := make([]string, len(pc.Price))
	closes := make([]float64, len(pc.Price))
	for i, p := range pc.Price {
		labels[i] = p.Time
		closes[i] = p.Value
	}

	series := [][]float64{closes}
	names := []string{"Close"}
	for _, overlay := range []struct {
		name   string
		points []ChartDataPoint
	}{
		{"SMA 20", pc.SMA20},
		{"SMA 50", pc.SMA50},
		{"Bollinger Upper", pc.BollingerUpper},
		{"Bollinger Lower", pc.BollingerLower},
	} {
		if len(overlay.points) == 0 {
			continue
		}
		series = append(series, alignToLabels(labels, overlay.points))
		names = append(names, overlay.name)
	}

	painter, err := charts.LineRender(
		series,
		charts.TitleTextOptionFunc(pc.Symbol),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: splitNumberFor(len(labels)),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(renderWidth),
		charts.HeightOptionFunc(renderHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render price chart for %s: %w", pc.Symbol, err)
	}
	return painter.Bytes()
}

// RenderOutcomeDistribution renders simulated terminal values as a histogram.
// The current value is drawn implicitly: bins left of it are losses.
func RenderOutcomeDistribution(values []float64, currentValue float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no simulated values to render")
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		// Degenerate distribution still renders as a single occupied bin.
		hi = lo + 1
	}

	width := (hi - lo) / distributionBins
	counts := make([]float64, distributionBins)
	labels := make([]string, distributionBins)
	for _, v := range values {
		bin := int((v - lo) / width)
		if bin >= distributionBins {
			bin = distributionBins - 1
		}
		counts[bin]++
	}
	for i := range labels {
		labels[i] = fmt.Sprintf("%.0f", lo+(float64(i)+0.5)*width)
	}

	painter, err := charts.BarRender(
		[][]float64{counts},
		charts.TitleTextOptionFunc(fmt.Sprintf("Simulated Outcomes (current %.0f)", currentValue)),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, SplitNumber: 10}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(renderWidth),
		charts.HeightOptionFunc(renderHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render outcome distribution: %w", err)
	}
	return painter.Bytes()
}

// RenderScenarioFan renders per-step percentile tracks of simulated price
// paths as a fan of lines, one per percentile band.
func RenderScenarioFan(symbol string, bands []simulation.PathBand) ([]byte, error) {
	if len(bands) == 0 || len(bands[0].Values) == 0 {
		return nil, fmt.Errorf("no simulated paths to render")
	}

	steps := len(bands[0].Values)
	labels := make([]string, steps)
	for i := range labels {
		labels[i] = fmt.Sprintf("d%d", i)
	}

	series := make([][]float64, len(bands))
	names := make([]string, len(bands))
	for i, band := range bands {
		series[i] = band.Values
		names[i] = fmt.Sprintf("p%.0f", band.Percentile)
	}

	painter, err := charts.LineRender(
		series,
		charts.TitleTextOptionFunc(symbol+" Scenario Paths"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: splitNumberFor(steps),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(renderWidth),
		charts.HeightOptionFunc(renderHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render scenario fan for %s: %w", symbol, err)
	}
	return painter.Bytes()
}

// RenderAllocations renders per-holding current values as a bar chart.
// Holdings without a live quote render as zero-height bars, matching how
// the valuation functions treat them.
func RenderAllocations(rows []portfolio.AllocationRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no holdings to render")
	}

	values := make([]float64, len(rows))
	labels := make([]string, len(rows))
	for i, row := range rows {
		values[i] = row.CurrentValue
		labels[i] = row.Symbol
	}

	painter, err := charts.BarRender(
		[][]float64{values},
		charts.TitleTextOptionFunc("Allocation by Holding"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels}),
		charts.YAxisOptionFunc(charts.YAxisOption{DivideCount: 5}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(renderWidth),
		charts.HeightOptionFunc(renderHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render allocation chart: %w", err)
	}
	return painter.Bytes()
}

// alignToLabels expands a sparse overlay onto the full label axis, filling
// days the overlay does not cover with NaN so the renderer leaves gaps.
func alignToLabels(labels []string, points []ChartDataPoint) []float64 {
	byDay := make(map[string]float64, len(points))
	for _, p := range points {
		byDay[p.Time] = p.Value
	}

	out := make([]float64, len(labels))
	for i, day := range labels {
		if v, ok := byDay[day]; ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// splitNumberFor keeps x-axis labels readable regardless of point count.
func splitNumberFor(n int) int {
	split := n / 10
	if split < 3 {
		split = 3
	}
	if split > 12 {
		split = 12
	}
	return split
}
