package usecase

import (
	"context"
	"math"
	"time"

	"goldbot/internal/domain"
	"goldbot/internal/repository"

	"go.uber.org/zap"
)

// ExitPolicy controls how the TP1 partial is taken.
type ExitPolicy struct {
	PartialCloseTP1   float64
	MoveSLToBreakeven bool
}

// PositionManager walks the open positions on every quote and executes SL, TP1 and TP2.
// Callers serialize Manage with order placement.
type PositionManager struct {
	broker     domain.Broker
	book       *repository.PositionBook
	risk       *RiskGate
	journal    domain.Journal
	notifier   domain.Notifier
	instrument string
	policy     ExitPolicy
	now        func() time.Time
	logger     *zap.Logger
}

func NewPositionManager(
	broker domain.Broker,
	book *repository.PositionBook,
	risk *RiskGate,
	journal domain.Journal,
	notifier domain.Notifier,
	instrument string,
	policy ExitPolicy,
	logger *zap.Logger,
) *PositionManager {
	return &PositionManager{
		broker:     broker,
		book:       book,
		risk:       risk,
		journal:    journal,
		notifier:   notifier,
		instrument: instrument,
		policy:     policy,
		now:        time.Now,
		logger:     logger,
	}
}

// Manage evaluates every open position against q. Per position the first of SL, TP1, TP2 that matches wins.
func (m *PositionManager) Manage(ctx context.Context, q domain.Quote) {
	for _, p := range m.book.All() {
		exit := p.ExitPrice(q)

		switch {
		case p.StopHit(exit):
			m.closeFull(ctx, p, exit, domain.ExitStopLoss)
		case !p.TP1Done && p.Reached(p.TP1, exit):
			m.takePartial(ctx, p, exit)
		case p.Reached(p.TP2, exit):
			m.closeFull(ctx, p, exit, domain.ExitTP2)
		}
	}
}

// closeFull closes p and books the whole size. The broker holds native SL and TP2
// orders, so a failed close usually means the position is already gone; it is still booked.
func (m *PositionManager) closeFull(ctx context.Context, p domain.Position, exit float64, reason domain.ExitReason) {
	log := m.logger.With(
		zap.String("event", "trade"),
		zap.String("dealId", p.DealID),
		zap.Stringer("direction", p.Direction),
		zap.Float64("exit", exit),
	)
	log.Info("Closing position", zap.String("reason", string(reason)))

	if err := m.broker.ClosePosition(ctx, p.DealID); err != nil {
		log.Warn("Close failed (may already be closed)", zap.Error(err))
	}
	m.realize(ctx, p, exit, p.Size, reason, reason == domain.ExitStopLoss)
	m.book.Remove(p.DealID)
}

// takePartial closes the whole position at TP1, books the partial size and re-opens the remainder.
func (m *PositionManager) takePartial(ctx context.Context, p domain.Position, exit float64) {
	log := m.logger.With(
		zap.String("event", "trade"),
		zap.String("dealId", p.DealID),
		zap.Stringer("direction", p.Direction),
		zap.Float64("exit", exit),
	)
	log.Info("TP1 hit")

	if err := m.broker.ClosePosition(ctx, p.DealID); err != nil {
		log.Error("TP1 partial close failed", zap.Error(err))
		m.markTP1Done(p)
		return
	}

	partial := math.Max(1, math.Round(p.Size*m.policy.PartialCloseTP1))
	remaining := p.Size - partial
	m.realize(ctx, p, exit, partial, domain.ExitTP1, false)

	if remaining < 1 {
		m.book.Remove(p.DealID)
		return
	}

	stop := p.StopLevel
	if m.policy.MoveSLToBreakeven {
		stop = p.Entry
	}
	deal, err := m.broker.PlaceMarketOrder(ctx, domain.OrderRequest{
		Instrument:  m.instrument,
		Direction:   p.Direction,
		Size:        remaining,
		StopLevel:   stop,
		ProfitLevel: p.TP2,
	})
	if err != nil {
		log.Error("Re-open of remaining size failed", zap.Float64("size", remaining), zap.Error(err))
		m.markTP1Done(p)
		return
	}

	// The remainder's entry is the TP1 exit price; TP2 keeps its original level.
	next := domain.Position{
		Mode:          p.Mode,
		Direction:     p.Direction,
		Size:          remaining,
		Entry:         exit,
		StopLevel:     stop,
		TP1:           p.TP1,
		TP2:           p.TP2,
		TP1Done:       true,
		DealID:        deal.DealID,
		DealReference: deal.DealReference,
		OpenedAt:      m.now(),
	}
	if err := m.book.Replace(p.DealID, next); err != nil {
		log.Error("Failed to replace position", zap.Error(err))
		return
	}
	log.Info("Remaining size re-opened", zap.Float64("size", remaining), zap.String("newDealId", deal.DealID))
}

func (m *PositionManager) markTP1Done(p domain.Position) {
	p.TP1Done = true
	if err := m.book.Update(p); err != nil {
		m.logger.Error("Failed to update position", zap.String("dealId", p.DealID), zap.Error(err))
	}
}

func (m *PositionManager) realize(ctx context.Context, p domain.Position, exit, size float64, reason domain.ExitReason, isLoss bool) {
	pnl := p.PnL(exit, size)
	m.risk.Realize(pnl, isLoss)

	rec := domain.TradeRecord{
		DealID:     p.DealID,
		Instrument: m.instrument,
		Mode:       p.Mode,
		Direction:  p.Direction,
		Size:       size,
		Entry:      p.Entry,
		Exit:       exit,
		PnL:        pnl,
		Reason:     reason,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   m.now(),
	}
	if err := m.journal.RecordTrade(ctx, rec); err != nil {
		m.logger.Warn("Failed to journal trade", zap.String("dealId", p.DealID), zap.Error(err))
	}
	if err := m.notifier.Notify(ctx, closedNotification(rec)); err != nil {
		m.logger.Warn("Failed to send notification", zap.Error(err))
	}
}
