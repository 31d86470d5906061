package indicators

// CalculateEMA computes the Exponential Moving Average.
// The series is seeded with the simple average of the first period values;
// entries before index period-1 are left at zero.
func CalculateEMA(data []float64, period int) []float64 {
	ema := make([]float64, len(data))
	if period <= 0 || len(data) < period {
		return ema
	}

	k := 2.0 / (float64(period) + 1.0)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	ema[period-1] = sum / float64(period)

	for i := period; i < len(data); i++ {
		prevEma := ema[i-1]
		ema[i] = (data[i] * k) + (prevEma * (1 - k))
	}

	return ema
}

// LastEMA returns the most recent EMA value. ok is false while the series is still seeding.
func LastEMA(data []float64, period int) (float64, bool) {
	if period <= 0 || len(data) < period {
		return 0, false
	}
	ema := CalculateEMA(data, period)
	return ema[len(ema)-1], true
}
