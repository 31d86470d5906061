package domain

import "context"

// OrderRequest is a market order with native stop and profit levels.
type OrderRequest struct {
	Instrument  string    `json:"instrument"`
	Direction   Direction `json:"direction"`
	Size        float64   `json:"size"`
	StopLevel   float64   `json:"stopLevel"`
	ProfitLevel float64   `json:"profitLevel"`
}

// Deal identifies a confirmed broker position.
type Deal struct {
	DealID        string `json:"dealId"`
	DealReference string `json:"dealReference"`
}

// BrokerPosition is a position as reported by the broker.
type BrokerPosition struct {
	DealID     string    `json:"dealId"`
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Size       float64   `json:"size"`
	Level      float64   `json:"level"`
}

// Broker is the market data and execution collaborator.
// PlaceMarketOrder and ClosePosition resolve the broker's pending state before returning.
type Broker interface {
	FetchCandles(ctx context.Context, instrument string, tf Timeframe, maxBars int) ([]Candle, error)
	FetchQuote(ctx context.Context, instrument string) (Quote, error)
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (Deal, error)
	ClosePosition(ctx context.Context, dealID string) error
	FetchOpenPositions(ctx context.Context) ([]BrokerPosition, error)
	AccountBalance(ctx context.Context) (float64, error)
}
