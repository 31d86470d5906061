package capital

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"goldbot/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ domain.Broker = (*Client)(nil)

type confirmation struct {
	DealReference string `json:"dealReference"`
	DealStatus    string `json:"dealStatus"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	DealID        string `json:"dealId"`
	AffectedDeals []struct {
		DealID string `json:"dealId"`
		Status string `json:"status"`
	} `json:"affectedDeals"`
}

func (c confirmation) dealID() string {
	if c.DealID != "" {
		return c.DealID
	}
	for _, d := range c.AffectedDeals {
		if d.DealID != "" {
			return d.DealID
		}
	}
	return ""
}

// level rounds a price to the 2 decimals the platform accepts.
func level(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// PlaceMarketOrder opens a market position with native stop and profit levels and waits for
// the deal to be confirmed.
func (c *Client) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.Deal, error) {
	body := map[string]any{
		"epic":           req.Instrument,
		"direction":      req.Direction.String(),
		"size":           req.Size,
		"guaranteedStop": false,
		"stopLevel":      level(req.StopLevel).InexactFloat64(),
		"profitLevel":    level(req.ProfitLevel).InexactFloat64(),
	}
	c.logger.Info("Create position",
		zap.String("event", "trade"),
		zap.String("epic", req.Instrument),
		zap.Stringer("direction", req.Direction),
		zap.Float64("size", req.Size),
		zap.Stringer("stopLevel", level(req.StopLevel)),
		zap.Stringer("profitLevel", level(req.ProfitLevel)),
	)

	var resp struct {
		DealReference string `json:"dealReference"`
	}
	if _, err := c.send(ctx, http.MethodPost, "/api/v1/positions", nil, body, &resp, true); err != nil {
		return domain.Deal{}, fmt.Errorf("create position: %w", err)
	}
	if resp.DealReference == "" {
		return domain.Deal{}, fmt.Errorf("create position: %w: no deal reference", domain.ErrMalformedConfirmation)
	}

	conf, err := c.confirm(ctx, resp.DealReference)
	if err != nil {
		return domain.Deal{}, err
	}
	dealID := conf.dealID()
	if dealID == "" {
		return domain.Deal{}, fmt.Errorf("deal %s: %w: no deal id", resp.DealReference, domain.ErrMalformedConfirmation)
	}

	c.logger.Info("Deal confirmed", zap.String("dealId", dealID), zap.String("dealReference", resp.DealReference))
	return domain.Deal{DealID: dealID, DealReference: resp.DealReference}, nil
}

// ClosePosition closes dealID in full and waits for the close to be confirmed.
func (c *Client) ClosePosition(ctx context.Context, dealID string) error {
	c.logger.Info("Close position", zap.String("event", "trade"), zap.String("dealId", dealID))

	var resp struct {
		DealReference string `json:"dealReference"`
	}
	if _, err := c.send(ctx, http.MethodDelete, "/api/v1/positions/"+url.PathEscape(dealID), nil, nil, &resp, true); err != nil {
		return fmt.Errorf("close position %s: %w", dealID, err)
	}
	if resp.DealReference == "" {
		return fmt.Errorf("close position %s: %w: no deal reference", dealID, domain.ErrMalformedConfirmation)
	}
	if _, err := c.confirm(ctx, resp.DealReference); err != nil {
		return err
	}
	c.logger.Info("Close confirmed", zap.String("dealId", dealID))
	return nil
}

// confirm polls the confirms endpoint until the deal leaves the pending state.
func (c *Client) confirm(ctx context.Context, dealReference string) (confirmation, error) {
	for attempt := 1; attempt <= c.confirmRetries; attempt++ {
		timer := time.NewTimer(c.confirmDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return confirmation{}, ctx.Err()
		case <-timer.C:
		}

		var conf confirmation
		if err := c.get(ctx, "/api/v1/confirms/"+url.PathEscape(dealReference), nil, &conf); err != nil {
			return confirmation{}, fmt.Errorf("confirm deal %s: %w", dealReference, err)
		}
		switch conf.DealStatus {
		case "ACCEPTED":
			return conf, nil
		case "":
			c.logger.Debug("Awaiting deal status",
				zap.String("dealReference", dealReference),
				zap.Int("attempt", attempt),
				zap.Int("of", c.confirmRetries),
			)
		default:
			return confirmation{}, fmt.Errorf("deal %s: %w: %s %s", dealReference, domain.ErrOrderRejected, conf.DealStatus, conf.Reason)
		}
	}
	return confirmation{}, fmt.Errorf("deal %s after %d attempts: %w", dealReference, c.confirmRetries, domain.ErrConfirmationTimeout)
}

// FetchOpenPositions lists every position open on the account.
func (c *Client) FetchOpenPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	var resp struct {
		Positions []struct {
			Position struct {
				DealID    string  `json:"dealId"`
				Direction string  `json:"direction"`
				Size      float64 `json:"size"`
				Level     float64 `json:"level"`
			} `json:"position"`
			Market struct {
				Epic string `json:"epic"`
			} `json:"market"`
		} `json:"positions"`
	}
	if err := c.get(ctx, "/api/v1/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	out := make([]domain.BrokerPosition, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		dir, err := domain.ParseDirection(p.Position.Direction)
		if err != nil {
			c.logger.Warn("Skipping position", zap.String("dealId", p.Position.DealID), zap.Error(err))
			continue
		}
		out = append(out, domain.BrokerPosition{
			DealID:     p.Position.DealID,
			Instrument: p.Market.Epic,
			Direction:  dir,
			Size:       p.Position.Size,
			Level:      p.Position.Level,
		})
	}
	return out, nil
}
