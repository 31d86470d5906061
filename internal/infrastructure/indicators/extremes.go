package indicators

import "math"

// HighestHigh returns the highest value of the last n entries.
func HighestHigh(highs []float64, n int) float64 {
	if n > len(highs) {
		n = len(highs)
	}
	hh := math.Inf(-1)
	for _, h := range highs[len(highs)-n:] {
		if h > hh {
			hh = h
		}
	}
	return hh
}

// LowestLow returns the lowest value of the last n entries.
func LowestLow(lows []float64, n int) float64 {
	if n > len(lows) {
		n = len(lows)
	}
	ll := math.Inf(1)
	for _, l := range lows[len(lows)-n:] {
		if l < ll {
			ll = l
		}
	}
	return ll
}
