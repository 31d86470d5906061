package usecase

import (
	"context"
	"errors"
	"testing"

	"goldbot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func buyPosition(dealID string, size float64) domain.Position {
	return domain.Position{
		Mode:      domain.Scalp,
		Direction: domain.Buy,
		Size:      size,
		Entry:     100,
		StopLevel: 95,
		TP1:       105,
		TP2:       110,
		DealID:    dealID,
		OpenedAt:  baseTime,
	}
}

func TestManageStopLoss(t *testing.T) {
	svc, broker, journal, notifier := newTestService(testConfig())
	require.NoError(t, svc.book.Add(buyPosition("D1", 2)))
	broker.On("ClosePosition", mock.Anything, "D1").Return(nil)

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 94.9, Ask: 95.2})

	assert.Empty(t, svc.Positions())
	st := svc.RiskState()
	assert.InDelta(t, -10.2, st.RealizedPnlUSD, 1e-9)
	assert.Equal(t, 1, st.ConsecutiveLosses)
	require.Len(t, journal.trades, 1)
	assert.Equal(t, domain.ExitStopLoss, journal.trades[0].Reason)
	assert.Equal(t, 94.9, journal.trades[0].Exit)
	assert.Equal(t, []string{"SL_HIT"}, notifier.types())
}

func TestManageStopLossCloseFailureStillBooks(t *testing.T) {
	svc, broker, _, _ := newTestService(testConfig())
	require.NoError(t, svc.book.Add(buyPosition("D1", 1)))
	broker.On("ClosePosition", mock.Anything, "D1").Return(errors.New("position not found"))

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 95, Ask: 95.3})

	assert.Empty(t, svc.Positions())
	assert.InDelta(t, -5, svc.RiskState().RealizedPnlUSD, 1e-9)
}

func TestManageTP1SingleUnitRemovesWithoutReopen(t *testing.T) {
	svc, broker, journal, _ := newTestService(testConfig())
	require.NoError(t, svc.book.Add(buyPosition("D1", 1)))
	broker.On("ClosePosition", mock.Anything, "D1").Return(nil)

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 105, Ask: 105.3})

	broker.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything, mock.Anything)
	assert.Empty(t, svc.Positions())
	assert.InDelta(t, 5, svc.RiskState().RealizedPnlUSD, 1e-9)
	require.Len(t, journal.trades, 1)
	assert.Equal(t, domain.ExitTP1, journal.trades[0].Reason)
	assert.Equal(t, 1.0, journal.trades[0].Size)
}

func TestManageTP1ReopensRemainderAtExitPrice(t *testing.T) {
	svc, broker, _, _ := newTestService(testConfig())
	require.NoError(t, svc.book.Add(buyPosition("D0", 1)))
	require.NoError(t, svc.book.Add(buyPosition("D1", 3)))
	broker.On("ClosePosition", mock.Anything, mock.Anything).Return(nil)
	broker.On("PlaceMarketOrder", mock.Anything, domain.OrderRequest{
		Instrument:  "XAUUSD",
		Direction:   domain.Buy,
		Size:        1,
		StopLevel:   95,
		ProfitLevel: 110,
	}).Return(domain.Deal{DealID: "D2", DealReference: "R2"}, nil)

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 105.2, Ask: 105.5})

	positions := svc.Positions()
	require.Len(t, positions, 1)
	p := positions[0]
	assert.Equal(t, "D2", p.DealID)
	assert.Equal(t, 1.0, p.Size)
	assert.Equal(t, 105.2, p.Entry, "remainder entry is the TP1 exit price")
	assert.Equal(t, 95.0, p.StopLevel)
	assert.Equal(t, 105.0, p.TP1)
	assert.Equal(t, 110.0, p.TP2, "TP2 is not re-derived from the new entry")
	assert.True(t, p.TP1Done)

	// D0: 1 unit, D1: round(1.5)=2 units
	assert.InDelta(t, 5.2+2*5.2, svc.RiskState().RealizedPnlUSD, 1e-9)
	assert.Equal(t, 0, svc.RiskState().TradesToday, "re-open is not a new trade")
}

func TestManageTP1MovesStopToBreakeven(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy.MoveSLToBreakeven = true
	svc, broker, _, _ := newTestService(cfg)
	require.NoError(t, svc.book.Add(buyPosition("D1", 4)))
	broker.On("ClosePosition", mock.Anything, "D1").Return(nil)
	broker.On("PlaceMarketOrder", mock.Anything, mock.MatchedBy(func(r domain.OrderRequest) bool {
		return r.Size == 2 && r.StopLevel == 100
	})).Return(domain.Deal{DealID: "D2"}, nil)

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 105, Ask: 105.3})

	require.Len(t, svc.Positions(), 1)
	assert.Equal(t, 100.0, svc.Positions()[0].StopLevel)
	broker.AssertExpectations(t)
}

func TestManageTP1ReopenFailureKeepsPosition(t *testing.T) {
	svc, broker, _, _ := newTestService(testConfig())
	require.NoError(t, svc.book.Add(buyPosition("D1", 3)))
	broker.On("ClosePosition", mock.Anything, "D1").Return(nil)
	broker.On("PlaceMarketOrder", mock.Anything, mock.Anything).
		Return(domain.Deal{}, domain.ErrConfirmationTimeout).Once()

	ctx := context.Background()
	svc.ManageQuote(ctx, domain.Quote{Bid: 105, Ask: 105.3})

	positions := svc.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "D1", positions[0].DealID)
	assert.Equal(t, 3.0, positions[0].Size)
	assert.True(t, positions[0].TP1Done)
	assert.InDelta(t, 10, svc.RiskState().RealizedPnlUSD, 1e-9)

	// next tick at the same price must not take the partial again
	svc.ManageQuote(ctx, domain.Quote{Bid: 105, Ask: 105.3})
	broker.AssertNumberOfCalls(t, "ClosePosition", 1)
	broker.AssertNumberOfCalls(t, "PlaceMarketOrder", 1)
}

func TestManageTP1CloseFailureMarksDone(t *testing.T) {
	svc, broker, journal, _ := newTestService(testConfig())
	require.NoError(t, svc.book.Add(buyPosition("D1", 2)))
	broker.On("ClosePosition", mock.Anything, "D1").Return(errors.New("503")).Once()

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 105, Ask: 105.3})

	broker.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything, mock.Anything)
	require.Len(t, svc.Positions(), 1)
	assert.True(t, svc.Positions()[0].TP1Done)
	assert.Equal(t, 0.0, svc.RiskState().RealizedPnlUSD)
	assert.Empty(t, journal.trades)
}

func TestManageTP2(t *testing.T) {
	svc, broker, journal, _ := newTestService(testConfig())
	p := buyPosition("D2", 1)
	p.TP1Done = true
	p.Entry = 105
	require.NoError(t, svc.book.Add(p))
	broker.On("ClosePosition", mock.Anything, "D2").Return(nil)

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 110.4, Ask: 110.7})

	assert.Empty(t, svc.Positions())
	assert.InDelta(t, 5.4, svc.RiskState().RealizedPnlUSD, 1e-9)
	require.Len(t, journal.trades, 1)
	assert.Equal(t, domain.ExitTP2, journal.trades[0].Reason)
}

func TestManageSellUsesAsk(t *testing.T) {
	svc, broker, _, _ := newTestService(testConfig())
	require.NoError(t, svc.book.Add(domain.Position{
		Mode: domain.Scalp, Direction: domain.Sell, Size: 1,
		Entry: 100, StopLevel: 105, TP1: 95, TP2: 90, DealID: "S1",
	}))
	broker.On("ClosePosition", mock.Anything, "S1").Return(nil)

	// bid crossed TP1 but ask has not
	svc.ManageQuote(context.Background(), domain.Quote{Bid: 94.8, Ask: 95.1})
	broker.AssertNotCalled(t, "ClosePosition", mock.Anything, mock.Anything)
	require.Len(t, svc.Positions(), 1)

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 94.6, Ask: 94.9})
	assert.Empty(t, svc.Positions())
	assert.InDelta(t, 5.1, svc.RiskState().RealizedPnlUSD, 1e-9)
}

func TestManageNoMatchLeavesPosition(t *testing.T) {
	svc, broker, _, _ := newTestService(testConfig())
	p := buyPosition("D1", 2)
	require.NoError(t, svc.book.Add(p))

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 101, Ask: 101.3})

	broker.AssertNotCalled(t, "ClosePosition", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.Position{p}, svc.Positions())
}

func TestConsecutiveLossesResetByTP1Partial(t *testing.T) {
	svc, broker, _, _ := newTestService(testConfig())
	ctx := context.Background()
	broker.On("ClosePosition", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.book.Add(buyPosition("L1", 1)))
	svc.ManageQuote(ctx, domain.Quote{Bid: 94, Ask: 94.3})
	assert.Equal(t, 1, svc.RiskState().ConsecutiveLosses)

	require.NoError(t, svc.book.Add(buyPosition("W1", 1)))
	svc.ManageQuote(ctx, domain.Quote{Bid: 105, Ask: 105.3})
	assert.Equal(t, 0, svc.RiskState().ConsecutiveLosses)
}

func TestManageIgnoresRiskGate(t *testing.T) {
	svc, broker, _, _ := newTestService(testConfig())
	for i := 0; i < 3; i++ {
		svc.risk.Opened()
	}
	require.Error(t, svc.risk.Check())
	require.NoError(t, svc.book.Add(buyPosition("D1", 1)))
	broker.On("ClosePosition", mock.Anything, "D1").Return(nil)

	svc.ManageQuote(context.Background(), domain.Quote{Bid: 90, Ask: 90.3})
	assert.Empty(t, svc.Positions())
}

func TestManagePositionsSkipsQuoteWhenFlat(t *testing.T) {
	svc, broker, _, _ := newTestService(testConfig())
	require.NoError(t, svc.ManagePositions(context.Background()))
	broker.AssertNotCalled(t, "FetchQuote", mock.Anything, mock.Anything)
}
