package domain

import "fmt"

// RiskLimits are the daily gates on new entries.
type RiskLimits struct {
	MaxTradesPerDay      int     `json:"maxTradesPerDay"`
	DailyLossLimitUSD    float64 `json:"dailyLossLimitUsd"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`
}

// DailyRiskState holds the counters reset once per UTC day.
type DailyRiskState struct {
	RealizedPnlUSD    float64 `json:"realizedPnlUsd"`
	TradesToday       int     `json:"tradesToday"`
	ConsecutiveLosses int     `json:"consecutiveLosses"`
	DayStartEquity    float64 `json:"dayStartEquity"`
}

// Check returns nil when a new entry is allowed, otherwise an error naming the limit that blocks it.
func (s DailyRiskState) Check(l RiskLimits) error {
	if s.TradesToday >= l.MaxTradesPerDay {
		return fmt.Errorf("%w: daily trade limit reached (%d/%d)", ErrRiskLimit, s.TradesToday, l.MaxTradesPerDay)
	}
	if s.RealizedPnlUSD <= -l.DailyLossLimitUSD {
		return fmt.Errorf("%w: daily loss limit reached (pnl %.2f)", ErrRiskLimit, s.RealizedPnlUSD)
	}
	if s.ConsecutiveLosses >= l.MaxConsecutiveLosses {
		return fmt.Errorf("%w: max consecutive losses reached (%d)", ErrRiskLimit, s.ConsecutiveLosses)
	}
	return nil
}

// Realize books a closed trade leg.
func (s *DailyRiskState) Realize(pnl float64, isLoss bool) {
	s.RealizedPnlUSD += pnl
	if isLoss {
		s.ConsecutiveLosses++
	} else {
		s.ConsecutiveLosses = 0
	}
}

// Opened counts a new entry.
func (s *DailyRiskState) Opened() {
	s.TradesToday++
}

// Snapshot is the read-only status exposed to reporting collaborators.
type Snapshot struct {
	TradesToday       int     `json:"tradesToday"`
	DayPnl            float64 `json:"dayPnl"`
	OpenPositionCount int     `json:"openPositionCount"`
	ConsecutiveLosses int     `json:"consecutiveLosses"`
	DayStartEquity    float64 `json:"dayStartEquity"`
}
