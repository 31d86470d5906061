package capital

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"goldbot/internal/domain"

	"go.uber.org/zap"
)

var resolutions = map[domain.Timeframe]string{
	domain.M5:  "MINUTE_5",
	domain.M15: "MINUTE_15",
	domain.H1:  "HOUR",
	domain.H4:  "HOUR_4",
}

type bidAsk struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

func (p bidAsk) mid() float64 {
	return (p.Bid + p.Ask) / 2
}

type priceBar struct {
	SnapshotTime     string  `json:"snapshotTime"`
	SnapshotTimeUTC  string  `json:"snapshotTimeUTC"`
	OpenPrice        bidAsk  `json:"openPrice"`
	HighPrice        bidAsk  `json:"highPrice"`
	LowPrice         bidAsk  `json:"lowPrice"`
	ClosePrice       bidAsk  `json:"closePrice"`
	LastTradedVolume float64 `json:"lastTradedVolume"`
}

// FetchCandles returns up to maxBars mid-price bars, oldest first. The newest bar may still be forming.
func (c *Client) FetchCandles(ctx context.Context, instrument string, tf domain.Timeframe, maxBars int) ([]domain.Candle, error) {
	res, ok := resolutions[tf]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
	query := url.Values{}
	query.Set("resolution", res)
	query.Set("max", strconv.Itoa(maxBars))

	var resp struct {
		Prices []priceBar `json:"prices"`
	}
	if err := c.get(ctx, "/api/v1/prices/"+url.PathEscape(instrument), query, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s %s candles: %w", instrument, tf, err)
	}

	candles := make([]domain.Candle, 0, len(resp.Prices))
	for _, p := range resp.Prices {
		raw := p.SnapshotTimeUTC
		if raw == "" {
			raw = p.SnapshotTime
		}
		ts, err := parseSnapshotTime(raw)
		if err != nil {
			c.logger.Warn("Skipping bar with bad time", zap.String("time", raw), zap.Error(err))
			continue
		}
		candles = append(candles, domain.Candle{
			Timestamp: ts.UnixMilli(),
			Open:      p.OpenPrice.mid(),
			High:      p.HighPrice.mid(),
			Low:       p.LowPrice.mid(),
			Close:     p.ClosePrice.mid(),
			Volume:    p.LastTradedVolume,
		})
	}
	return candles, nil
}

var snapshotLayouts = []string{
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// parseSnapshotTime reads the broker's bar time. Times without a zone are UTC.
func parseSnapshotTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	for _, layout := range snapshotLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// FetchQuote returns the current bid and offer.
func (c *Client) FetchQuote(ctx context.Context, instrument string) (domain.Quote, error) {
	var resp struct {
		Snapshot struct {
			Bid   float64 `json:"bid"`
			Offer float64 `json:"offer"`
		} `json:"snapshot"`
	}
	if err := c.get(ctx, "/api/v1/markets/"+url.PathEscape(instrument), nil, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("fetch %s quote: %w", instrument, err)
	}
	return domain.Quote{Bid: resp.Snapshot.Bid, Ask: resp.Snapshot.Offer}, nil
}

// AccountBalance returns the available balance of the first account.
func (c *Client) AccountBalance(ctx context.Context) (float64, error) {
	var resp struct {
		Accounts []struct {
			AccountID string `json:"accountId"`
			Preferred bool   `json:"preferred"`
			Balance   struct {
				Balance   float64 `json:"balance"`
				Available float64 `json:"available"`
			} `json:"balance"`
		} `json:"accounts"`
	}
	if err := c.get(ctx, "/api/v1/accounts", nil, &resp); err != nil {
		return 0, fmt.Errorf("fetch accounts: %w", err)
	}
	if len(resp.Accounts) == 0 {
		return 0, fmt.Errorf("fetch accounts: no accounts")
	}
	return resp.Accounts[0].Balance.Available, nil
}
