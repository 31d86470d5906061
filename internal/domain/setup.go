package domain

// Setup is a pending pullback entry for one mode. The zero value means "no setup".
// Setups are values: every transition returns a new Setup instead of mutating one in place.
type Setup struct {
	Active          bool      `json:"active"`
	Direction       Direction `json:"direction"`
	CreatedAt       int64     `json:"createdAt"` // timestamp of the bar that formed it
	PullbackExtreme float64   `json:"pullbackExtreme"`
}

// NoSetup is the inactive setup.
var NoSetup = Setup{}

// NewSetup opens a setup on bar. The extreme is the bar low for BUY and the bar high for SELL.
func NewSetup(dir Direction, bar Candle) Setup {
	extreme := bar.Low
	if dir == Sell {
		extreme = bar.High
	}
	return Setup{
		Active:          true,
		Direction:       dir,
		CreatedAt:       bar.Timestamp,
		PullbackExtreme: extreme,
	}
}

// Tighten returns the setup with its extreme moved toward the trend side of bar:
// min(extreme, low) for BUY, max(extreme, high) for SELL.
func (s Setup) Tighten(bar Candle) Setup {
	if !s.Active {
		return s
	}
	switch s.Direction {
	case Buy:
		if bar.Low < s.PullbackExtreme {
			s.PullbackExtreme = bar.Low
		}
	case Sell:
		if bar.High > s.PullbackExtreme {
			s.PullbackExtreme = bar.High
		}
	}
	return s
}

// BarsSince counts candles strictly after the bar that formed the setup.
func (s Setup) BarsSince(candles []Candle) int {
	n := 0
	for _, c := range candles {
		if c.Timestamp > s.CreatedAt {
			n++
		}
	}
	return n
}

// Expired reports whether more than expiryBars bars closed after creation.
func (s Setup) Expired(candles []Candle, expiryBars int) bool {
	return s.Active && s.BarsSince(candles) > expiryBars
}
