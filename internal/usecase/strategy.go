package usecase

import (
	"fmt"
	"math"

	"goldbot/internal/config"
	"goldbot/internal/domain"
	"goldbot/internal/infrastructure/indicators"
)

// SetupEvent is the transition a close event produced for a mode's setup.
type SetupEvent int

const (
	EventNone SetupEvent = iota
	EventCreated
	EventTightened
	EventExpired
	EventInvalidated
	EventTriggered
)

func (e SetupEvent) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventTightened:
		return "tightened"
	case EventExpired:
		return "expired"
	case EventInvalidated:
		return "invalidated"
	case EventTriggered:
		return "triggered"
	}
	return "none"
}

// Decision is the outcome of evaluating one closed bar for a mode.
type Decision struct {
	Setup     domain.Setup // setup to store after this close
	Event     SetupEvent
	Triggered domain.Setup // the tightened setup that fired, set only on EventTriggered
	ATR       float64
}

// Levels are the stop and targets of a new order.
type Levels struct {
	Entry    float64
	StopLoss float64
	R        float64
	TP1      float64
	TP2      float64
}

// Strategy evaluates the trend-pullback-BOS rules. It holds no state.
type Strategy struct {
	cfg config.StrategyConfig
}

func NewStrategy(cfg config.StrategyConfig) *Strategy {
	return &Strategy{cfg: cfg}
}

// Trend classifies the latest close against the trend EMA.
// Fewer than EMATrendPeriod bars yields TrendNone.
func (s *Strategy) Trend(candles []domain.Candle) domain.Trend {
	if len(candles) < s.cfg.EMATrendPeriod {
		return domain.TrendNone
	}
	ema, ok := indicators.LastEMA(domain.Closes(candles), s.cfg.EMATrendPeriod)
	if !ok {
		return domain.TrendNone
	}
	last := candles[len(candles)-1].Close
	switch {
	case last > ema:
		return domain.TrendUp
	case last < ema:
		return domain.TrendDown
	}
	return domain.TrendNone
}

// Chop reports whether the fast and pullback EMAs are too close relative to ATR.
// Thin data counts as chop.
func (s *Strategy) Chop(candles []domain.Candle) bool {
	if len(candles) < s.cfg.EMAPullbackPeriod {
		return true
	}
	closes := domain.Closes(candles)
	fast, ok1 := indicators.LastEMA(closes, s.cfg.EMAFastPeriod)
	slow, ok2 := indicators.LastEMA(closes, s.cfg.EMAPullbackPeriod)
	atr, ok3 := s.atr(candles)
	if !ok1 || !ok2 || !ok3 {
		return true
	}
	return math.Abs(fast-slow) < s.cfg.ChopEMADistATRMin*atr
}

func (s *Strategy) atr(candles []domain.Candle) (float64, bool) {
	return indicators.LastATR(domain.Highs(candles), domain.Lows(candles), domain.Closes(candles), s.cfg.ATRPeriod)
}

// DetectSetup opens a setup when the latest bar pulled back to the pullback EMA in the trend direction.
func (s *Strategy) DetectSetup(candles []domain.Candle, trend domain.Trend) domain.Setup {
	dir, ok := trend.Direction()
	if !ok || len(candles) < s.cfg.EMAPullbackPeriod {
		return domain.NoSetup
	}
	ema, ok1 := indicators.LastEMA(domain.Closes(candles), s.cfg.EMAPullbackPeriod)
	atr, ok2 := s.atr(candles)
	if !ok1 || !ok2 {
		return domain.NoSetup
	}

	bar := candles[len(candles)-1]
	touch := bar.Low
	if dir == domain.Sell {
		touch = bar.High
	}
	if math.Abs(touch-ema) > s.cfg.PullbackATRTol*atr {
		return domain.NoSetup
	}
	return domain.NewSetup(dir, bar)
}

// BreakOfStructure reports whether the latest bar closed beyond the extreme of the
// lookback bars before it. Oversized bars never trigger.
func (s *Strategy) BreakOfStructure(setup domain.Setup, candles []domain.Candle, lookback int) bool {
	if !setup.Active || lookback < 1 || len(candles) < lookback+1 {
		return false
	}
	atr, ok := s.atr(candles)
	if !ok {
		return false
	}
	bar := candles[len(candles)-1]
	if bar.Range() > s.cfg.BigCandleATRMax*atr {
		return false
	}

	prev := candles[:len(candles)-1]
	if setup.Direction == domain.Buy {
		return bar.Close > indicators.HighestHigh(domain.Highs(prev), lookback)
	}
	return bar.Close < indicators.LowestLow(domain.Lows(prev), lookback)
}

// Evaluate runs one close event of the setup state machine for mode m.
// entry and trend are the closed bars of the mode's entry and trend timeframes.
func (s *Strategy) Evaluate(cur domain.Setup, entry, trend []domain.Candle, m config.ModeConfig) Decision {
	t := s.Trend(trend)
	dir, hasTrend := t.Direction()
	if !hasTrend || s.Chop(entry) {
		if cur.Active {
			return Decision{Setup: domain.NoSetup, Event: EventInvalidated}
		}
		return Decision{Setup: domain.NoSetup}
	}

	if !cur.Active {
		next := s.DetectSetup(entry, t)
		if next.Active {
			return Decision{Setup: next, Event: EventCreated}
		}
		return Decision{Setup: domain.NoSetup}
	}

	if cur.Direction != dir {
		return Decision{Setup: domain.NoSetup, Event: EventInvalidated}
	}
	if cur.Expired(entry, m.ExpiryBars) {
		return Decision{Setup: domain.NoSetup, Event: EventExpired}
	}

	next := cur.Tighten(entry[len(entry)-1])
	if s.BreakOfStructure(next, entry, m.BOSLookback) {
		atr, _ := s.atr(entry)
		return Decision{Setup: domain.NoSetup, Event: EventTriggered, Triggered: next, ATR: atr}
	}
	return Decision{Setup: next, Event: EventTightened}
}

// Levels sizes an order for a triggered setup filled at entry.
func (s *Strategy) Levels(setup domain.Setup, entry, atr, tp2R float64) (Levels, error) {
	return ComputeLevels(setup.Direction, setup.PullbackExtreme, entry, atr, s.cfg.SLBufferATR, s.cfg.TP1R, tp2R)
}

// ComputeLevels places the stop a buffer of ATR beyond the pullback extreme and the
// targets at multiples of the resulting risk distance R.
func ComputeLevels(dir domain.Direction, extreme, entry, atr, bufferATR, tp1R, tp2R float64) (Levels, error) {
	if math.IsNaN(atr) || atr <= 0 {
		return Levels{}, fmt.Errorf("%w: ATR %v", domain.ErrInvalidRisk, atr)
	}
	sign := dir.Sign()
	sl := extreme - sign*bufferATR*atr
	r := sign * (entry - sl)
	if math.IsNaN(r) || r <= 0 {
		return Levels{}, fmt.Errorf("%w: R %v (entry %.2f, stop %.2f)", domain.ErrInvalidRisk, r, entry, sl)
	}
	return Levels{
		Entry:    entry,
		StopLoss: sl,
		R:        r,
		TP1:      entry + sign*tp1R*r,
		TP2:      entry + sign*tp2R*r,
	}, nil
}
