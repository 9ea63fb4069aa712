package domain

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PriceMatrix is an ordered-by-date table of close prices with one column per
// asset. Symbol order is fixed at construction and every positional consumer
// (weight vectors, risk contributions) aligns to it by index, never by label.
// Rows containing any non-finite value are dropped before the matrix is built.
type PriceMatrix struct {
	symbols []string
	data    *mat.Dense
}

// NewPriceMatrix builds a PriceMatrix from date-ordered rows aligned to symbols.
// Returns InsufficientDataError when fewer than 2 clean rows remain, since a
// single price row yields no return observation.
func NewPriceMatrix(symbols []string, rows [][]float64) (*PriceMatrix, error) {
	if len(symbols) == 0 {
		return nil, &InvalidParameterError{Name: "symbols", Value: 0, Reason: "at least one asset column required"}
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			return nil, &InvalidParameterError{Name: "symbols", Value: float64(len(symbols)), Reason: "duplicate symbol " + s}
		}
		seen[s] = struct{}{}
	}

	clean := make([][]float64, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(symbols) {
			return nil, &DimensionMismatchError{Op: "price row", Want: len(symbols), Got: len(row)}
		}
		valid := true
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				valid = false
				break
			}
		}
		if valid {
			clean = append(clean, row)
		}
	}
	if len(clean) < 2 {
		return nil, &InsufficientDataError{Op: "price matrix", Needed: 2, Got: len(clean)}
	}

	data := mat.NewDense(len(clean), len(symbols), nil)
	for i, row := range clean {
		data.SetRow(i, row)
	}
	return &PriceMatrix{symbols: append([]string(nil), symbols...), data: data}, nil
}

// Symbols returns a copy of the column symbols in positional order.
func (p *PriceMatrix) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// NumRows returns the number of price observations.
func (p *PriceMatrix) NumRows() int {
	r, _ := p.data.Dims()
	return r
}

// NumAssets returns the number of asset columns.
func (p *PriceMatrix) NumAssets() int {
	_, c := p.data.Dims()
	return c
}

// Column returns the price series for column j, oldest first.
func (p *PriceMatrix) Column(j int) []float64 {
	return mat.Col(nil, j, p.data)
}

// LastRow returns the most recent price row.
func (p *PriceMatrix) LastRow() []float64 {
	r, _ := p.data.Dims()
	return mat.Row(nil, r-1, p.data)
}

// Returns converts the price table into simple returns r_t = p_t/p_{t-1} - 1,
// elementwise. The result has one fewer row than the source; return rows that
// come out non-finite (zero or corrupt prior price) are dropped. Fails with
// InsufficientDataError when no valid return row remains.
func (p *PriceMatrix) Returns() (*ReturnMatrix, error) {
	nRows, nCols := p.data.Dims()
	out := make([][]float64, 0, nRows-1)
	for i := 1; i < nRows; i++ {
		row := make([]float64, nCols)
		valid := true
		for j := 0; j < nCols; j++ {
			prev := p.data.At(i-1, j)
			r := (p.data.At(i, j) - prev) / prev
			if math.IsNaN(r) || math.IsInf(r, 0) {
				valid = false
				break
			}
			row[j] = r
		}
		if valid {
			out = append(out, row)
		}
	}
	if len(out) < 1 {
		return nil, &InsufficientDataError{Op: "returns", Needed: 1, Got: 0}
	}

	data := mat.NewDense(len(out), nCols, nil)
	for i, row := range out {
		data.SetRow(i, row)
	}
	return &ReturnMatrix{symbols: p.Symbols(), data: data}, nil
}

// ReturnMatrix holds simple daily returns with one column per asset, aligned
// to the source PriceMatrix symbols.
type ReturnMatrix struct {
	symbols []string
	data    *mat.Dense
}

// Symbols returns a copy of the column symbols in positional order.
func (r *ReturnMatrix) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

// NumRows returns the number of return observations.
func (r *ReturnMatrix) NumRows() int {
	n, _ := r.data.Dims()
	return n
}

// NumAssets returns the number of asset columns.
func (r *ReturnMatrix) NumAssets() int {
	_, c := r.data.Dims()
	return c
}

// Column returns the return series for column j.
func (r *ReturnMatrix) Column(j int) []float64 {
	return mat.Col(nil, j, r.data)
}

// MeanVector returns the per-asset mean daily return.
func (r *ReturnMatrix) MeanVector() []float64 {
	_, nCols := r.data.Dims()
	means := make([]float64, nCols)
	for j := 0; j < nCols; j++ {
		means[j] = stat.Mean(r.Column(j), nil)
	}
	return means
}

// Covariance returns the sample covariance matrix (N-1 divisor) of the return
// columns.
func (r *ReturnMatrix) Covariance() *mat.SymDense {
	_, nCols := r.data.Dims()
	cols := make([][]float64, nCols)
	for j := 0; j < nCols; j++ {
		cols[j] = r.Column(j)
	}

	cov := mat.NewSymDense(nCols, nil)
	for i := 0; i < nCols; i++ {
		for j := i; j < nCols; j++ {
			cov.SetSym(i, j, stat.Covariance(cols[i], cols[j], nil))
		}
	}
	return cov
}

// PortfolioReturns projects each return row onto the weight vector, producing
// the weighted portfolio return series. Weights must align positionally to the
// matrix columns.
func (r *ReturnMatrix) PortfolioReturns(weights []float64) ([]float64, error) {
	nRows, nCols := r.data.Dims()
	if len(weights) != nCols {
		return nil, &DimensionMismatchError{Op: "portfolio returns", Want: nCols, Got: len(weights)}
	}

	series := make([]float64, nRows)
	for i := 0; i < nRows; i++ {
		var sum float64
		for j := 0; j < nCols; j++ {
			sum += r.data.At(i, j) * weights[j]
		}
		series[i] = sum
	}
	return series, nil
}
