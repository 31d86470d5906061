package domain

import (
	"encoding/json"
	"fmt"
)

// Direction is the side of a setup or position.
type Direction int

const (
	Buy  Direction = 1
	Sell Direction = -1
)

// Sign returns +1 for BUY and -1 for SELL. Price math is written once against it.
func (d Direction) Sign() float64 {
	return float64(d)
}

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return ""
}

// ParseDirection parses "BUY" / "SELL".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Trend is the higher-timeframe bias.
type Trend string

const (
	TrendNone Trend = "NONE"
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
)

// Direction maps UP to BUY and DOWN to SELL. ok is false for NONE.
func (t Trend) Direction() (Direction, bool) {
	switch t {
	case TrendUp:
		return Buy, true
	case TrendDown:
		return Sell, true
	}
	return 0, false
}

// Mode is the trading mode bound to a timeframe pair.
type Mode string

const (
	Scalp Mode = "SCALP"
	Swing Mode = "SWING"
)
