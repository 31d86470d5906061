package domain

import (
	"context"
	"time"
)

// SignalAction names the decision point a SignalRecord was taken at.
type SignalAction string

const (
	ActionSetup       SignalAction = "SETUP"
	ActionTrigger     SignalAction = "TRIGGER"
	ActionPlaced      SignalAction = "PLACED"
	ActionOrderFailed SignalAction = "ORDER_FAILED"
)

// SignalRecord is one labelled-later observation of the strategy state.
type SignalRecord struct {
	ID         string             `json:"id"`
	Timestamp  int64              `json:"timestamp"`
	Instrument string             `json:"instrument"`
	Mode       Mode               `json:"mode"`
	Action     SignalAction       `json:"action"`
	Direction  Direction          `json:"direction"`
	Features   map[string]float64 `json:"features"`
}

// ExitReason explains why a position leg was closed.
type ExitReason string

const (
	ExitStopLoss ExitReason = "SL_HIT"
	ExitTP1      ExitReason = "TP1_HIT"
	ExitTP2      ExitReason = "TP2_HIT"
)

// TradeRecord is a realized leg of a position.
type TradeRecord struct {
	DealID     string     `json:"dealId"`
	Instrument string     `json:"instrument"`
	Mode       Mode       `json:"mode"`
	Direction  Direction  `json:"direction"`
	Size       float64    `json:"size"`
	Entry      float64    `json:"entry"`
	Exit       float64    `json:"exit"`
	PnL        float64    `json:"pnl"`
	Reason     ExitReason `json:"reason"`
	OpenedAt   time.Time  `json:"openedAt"`
	ClosedAt   time.Time  `json:"closedAt"`
}

// Journal stores records for offline labeling and reporting. It is never read back by the engine.
type Journal interface {
	RecordSignal(ctx context.Context, rec SignalRecord) error
	RecordCandles(ctx context.Context, instrument string, tf Timeframe, candles []Candle) error
	RecordTrade(ctx context.Context, rec TradeRecord) error
}

// Notification is a user-facing trade event.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
