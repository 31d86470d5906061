package usecase

import (
	"sync"

	"goldbot/internal/domain"
)

// RiskGate owns the daily risk counters.
type RiskGate struct {
	mu       sync.Mutex
	limits   domain.RiskLimits
	state    domain.DailyRiskState
	lockedOn bool // lockout already reported today
}

func NewRiskGate(limits domain.RiskLimits) *RiskGate {
	return &RiskGate{limits: limits}
}

// Check returns a domain.ErrRiskLimit error while new entries are blocked.
func (g *RiskGate) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Check(g.limits)
}

// Lockout reports true once per day, on the first refused entry.
func (g *RiskGate) Lockout() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lockedOn {
		return false
	}
	g.lockedOn = true
	return true
}

func (g *RiskGate) Realize(pnl float64, isLoss bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Realize(pnl, isLoss)
}

func (g *RiskGate) Opened() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Opened()
}

// Reset starts a new trading day.
func (g *RiskGate) Reset(equity float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = domain.DailyRiskState{DayStartEquity: equity}
	g.lockedOn = false
}

func (g *RiskGate) State() domain.DailyRiskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *RiskGate) Limits() domain.RiskLimits {
	return g.limits
}
