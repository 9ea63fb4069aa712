package domain

import "fmt"

// Typed error kinds for the analytics core. Structurally invalid input always
// fails fast with one of these; benign missing-data cases (missing quote, zero
// total value) degrade to documented neutral results instead.

// InsufficientDataError reports too few valid observations to compute a metric.
type InsufficientDataError struct {
	Op     string // operation that was attempted
	Needed int    // minimum observations required
	Got    int    // observations available
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need at least %d observations, got %d", e.Op, e.Needed, e.Got)
}

// DimensionMismatchError reports a weight vector misaligned with matrix columns.
type DimensionMismatchError struct {
	Op   string
	Want int // expected length (matrix column count)
	Got  int // actual length
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: expected %d, got %d", e.Op, e.Want, e.Got)
}

// InvalidParameterError reports a parameter outside its valid range.
type InvalidParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Name, e.Value, e.Reason)
}

// DegenerateVarianceError reports a zero or negative portfolio variance that
// breaks a ratio-based decomposition.
type DegenerateVarianceError struct {
	Variance float64
}

func (e *DegenerateVarianceError) Error() string {
	return fmt.Sprintf("degenerate portfolio variance %g: decomposition undefined", e.Variance)
}

// DegenerateSampleError reports a sample whose tail is empty, which would turn
// a tail expectation into NaN.
type DegenerateSampleError struct {
	Op string
}

func (e *DegenerateSampleError) Error() string {
	return fmt.Sprintf("%s: degenerate sample: no observations in tail", e.Op)
}
