package domain

import "time"

// Position is an open market position tracked by the engine.
type Position struct {
	Mode          Mode      `json:"mode"`
	Direction     Direction `json:"direction"`
	Size          float64   `json:"size"`
	Entry         float64   `json:"entry"`
	StopLevel     float64   `json:"stopLevel"`
	TP1           float64   `json:"tp1"`
	TP2           float64   `json:"tp2"`
	TP1Done       bool      `json:"tp1Done"`
	DealID        string    `json:"dealId"`
	DealReference string    `json:"dealReference"`
	OpenedAt      time.Time `json:"openedAt"`
}

// ExitPrice returns the direction-correct exit side of the quote: bid closes a BUY, ask closes a SELL.
func (p Position) ExitPrice(q Quote) float64 {
	if p.Direction == Buy {
		return q.Bid
	}
	return q.Ask
}

// PnL is the realized profit of closing size units at exit.
func (p Position) PnL(exit, size float64) float64 {
	return (exit - p.Entry) * p.Direction.Sign() * size
}

// StopHit reports whether exit crossed the stop against the position.
func (p Position) StopHit(exit float64) bool {
	return (exit-p.StopLevel)*p.Direction.Sign() <= 0
}

// Reached reports whether exit crossed level in the position's favour.
func (p Position) Reached(level, exit float64) bool {
	return (exit-level)*p.Direction.Sign() >= 0
}

// Quote is a live bid/ask pair.
type Quote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// Spread returns ask minus bid.
func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// EntryPrice returns the side of the quote a new position in dir fills at.
func (q Quote) EntryPrice(dir Direction) float64 {
	if dir == Buy {
		return q.Ask
	}
	return q.Bid
}
