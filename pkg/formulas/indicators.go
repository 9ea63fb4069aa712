package formulas

import (
	"github.com/markcheno/go-talib"
)

// BollingerBands represents Bollinger Bands values
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// CalculateRSI calculates the Relative Strength Index
//
// RSI Formula:
//   RSI = 100 - (100 / (1 + RS))
//   where RS = Average Gain / Average Loss over N periods
//
// Args:
//   closes: Array of closing prices
//   length: RSI period (typically 14)
//
// Returns:
//   Current RSI value (0-100) or nil if insufficient data
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)

	// Return the last value
	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// RSISeries returns the full RSI series; leading warm-up values are NaN
func RSISeries(closes []float64, length int) []float64 {
	if len(closes) < length+1 {
		return nil
	}
	return talib.Rsi(closes, length)
}

// CalculateSMA calculates the simple moving average over the period
// Returns nil if insufficient data
func CalculateSMA(closes []float64, length int) *float64 {
	if len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}

// SMASeries returns the full simple moving average series; leading warm-up
// values are NaN
func SMASeries(closes []float64, length int) []float64 {
	if len(closes) < length {
		return nil
	}
	return talib.Sma(closes, length)
}

// CalculateBollingerBands calculates Bollinger Bands
//
// Bollinger Bands Formula:
//
//	Middle Band = N-day SMA
//	Upper Band = Middle + (mult * std deviation)
//	Lower Band = Middle - (mult * std deviation)
//
// Returns:
//
//	BollingerBands struct or nil if insufficient data
func CalculateBollingerBands(closes []float64, length int, stdDevMultiplier float64) *BollingerBands {
	if len(closes) < length {
		return nil
	}

	// MAType 0 = SMA (Simple Moving Average)
	upper, middle, lower := talib.BBands(closes, length, stdDevMultiplier, stdDevMultiplier, 0)

	if len(upper) > 0 && !isNaN(upper[len(upper)-1]) {
		return &BollingerBands{
			Upper:  upper[len(upper)-1],
			Middle: middle[len(middle)-1],
			Lower:  lower[len(lower)-1],
		}
	}

	return nil
}

// BollingerSeries returns the full upper, middle and lower band series;
// leading warm-up values are NaN
func BollingerSeries(closes []float64, length int, stdDevMultiplier float64) (upper, middle, lower []float64) {
	if len(closes) < length {
		return nil, nil, nil
	}
	return talib.BBands(closes, length, stdDevMultiplier, stdDevMultiplier, 0)
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
