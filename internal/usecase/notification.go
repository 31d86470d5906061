package usecase

import (
	"context"
	"errors"
	"fmt"

	"goldbot/internal/domain"

	"github.com/shopspring/decimal"
)

// Notifiers fans a notification out to every channel. One failing channel does not stop the rest.
type Notifiers []domain.Notifier

func (ns Notifiers) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, x := range ns {
		if err := x.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func openedNotification(instrument string, p domain.Position) domain.Notification {
	return domain.Notification{
		Title: fmt.Sprintf("%s %s %s opened", instrument, p.Mode, p.Direction),
		Body: fmt.Sprintf("Size %s @ %s | SL %s | TP1 %s | TP2 %s",
			decimal.NewFromFloat(p.Size).String(), price(p.Entry), price(p.StopLevel), price(p.TP1), price(p.TP2)),
		Data: map[string]string{
			"type":       "OPENED",
			"instrument": instrument,
			"mode":       string(p.Mode),
			"direction":  p.Direction.String(),
			"dealId":     p.DealID,
			"entry":      price(p.Entry),
		},
	}
}

func closedNotification(rec domain.TradeRecord) domain.Notification {
	return domain.Notification{
		Title: fmt.Sprintf("%s %s %s %s", rec.Instrument, rec.Mode, rec.Direction, rec.Reason),
		Body: fmt.Sprintf("Closed %s @ %s | P&L $%s",
			decimal.NewFromFloat(rec.Size).String(), price(rec.Exit), price(rec.PnL)),
		Data: map[string]string{
			"type":       string(rec.Reason),
			"instrument": rec.Instrument,
			"mode":       string(rec.Mode),
			"direction":  rec.Direction.String(),
			"dealId":     rec.DealID,
			"pnl":        price(rec.PnL),
		},
	}
}

func lockoutNotification(instrument string, reason error) domain.Notification {
	return domain.Notification{
		Title: fmt.Sprintf("%s trading paused", instrument),
		Body:  reason.Error(),
		Data:  map[string]string{"type": "RISK_LOCKOUT", "instrument": instrument},
	}
}
