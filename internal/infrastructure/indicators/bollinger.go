package indicators

import "math"

type BollingerBands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// CalculateBollingerBands computes the Bollinger Bands.
func CalculateBollingerBands(closes []float64, period int, multiplier float64) BollingerBands {
	length := len(closes)
	upper := make([]float64, length)
	middle := make([]float64, length)
	lower := make([]float64, length)

	if period <= 0 || length < period {
		return BollingerBands{upper, middle, lower}
	}

	for i := period - 1; i < length; i++ {
		window := closes[i-period+1 : i+1]

		sum := 0.0
		for _, v := range window {
			sum += v
		}
		ma := sum / float64(period)

		sumSqDiff := 0.0
		for _, v := range window {
			diff := v - ma
			sumSqDiff += diff * diff
		}
		stdDev := math.Sqrt(sumSqDiff / float64(period))

		middle[i] = ma
		upper[i] = ma + (multiplier * stdDev)
		lower[i] = ma - (multiplier * stdDev)
	}

	return BollingerBands{Upper: upper, Middle: middle, Lower: lower}
}

// LastBandWidth returns (upper-lower)/middle for the latest bar.
func LastBandWidth(closes []float64, period int, multiplier float64) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	bb := CalculateBollingerBands(closes, period, multiplier)
	i := len(closes) - 1
	if bb.Middle[i] == 0 {
		return 0, false
	}
	return (bb.Upper[i] - bb.Lower[i]) / bb.Middle[i], true
}
