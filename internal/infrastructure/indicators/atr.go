package indicators

import "math"

// TrueRanges returns the true range of every bar. The first bar has no previous close,
// so its range is high minus low.
func TrueRanges(highs, lows, closes []float64) []float64 {
	length := len(closes)
	trs := make([]float64, length)
	if length == 0 {
		return trs
	}

	trs[0] = highs[0] - lows[0]
	for i := 1; i < length; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trs[i] = math.Max(hl, math.Max(hc, lc))
	}
	return trs
}

// CalculateATR computes the Average True Range as an EMA of the true range series.
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	return CalculateEMA(TrueRanges(highs, lows, closes), period)
}

// LastATR returns the most recent ATR value. ok is false on insufficient data.
func LastATR(highs, lows, closes []float64, period int) (float64, bool) {
	return LastEMA(TrueRanges(highs, lows, closes), period)
}
