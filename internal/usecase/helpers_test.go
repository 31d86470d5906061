package usecase

import (
	"context"
	"sync"
	"time"

	"goldbot/internal/config"
	"goldbot/internal/domain"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) FetchCandles(ctx context.Context, instrument string, tf domain.Timeframe, maxBars int) ([]domain.Candle, error) {
	args := m.Called(ctx, instrument, tf, maxBars)
	return args.Get(0).([]domain.Candle), args.Error(1)
}

func (m *MockBroker) FetchQuote(ctx context.Context, instrument string) (domain.Quote, error) {
	args := m.Called(ctx, instrument)
	return args.Get(0).(domain.Quote), args.Error(1)
}

func (m *MockBroker) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.Deal, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Deal), args.Error(1)
}

func (m *MockBroker) ClosePosition(ctx context.Context, dealID string) error {
	args := m.Called(ctx, dealID)
	return args.Error(0)
}

func (m *MockBroker) FetchOpenPositions(ctx context.Context) ([]domain.BrokerPosition, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.BrokerPosition), args.Error(1)
}

func (m *MockBroker) AccountBalance(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

type recordingJournal struct {
	mu      sync.Mutex
	signals []domain.SignalRecord
	candles map[domain.Timeframe][]domain.Candle
	trades  []domain.TradeRecord
}

func newRecordingJournal() *recordingJournal {
	return &recordingJournal{candles: make(map[domain.Timeframe][]domain.Candle)}
}

func (j *recordingJournal) RecordSignal(_ context.Context, rec domain.SignalRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.signals = append(j.signals, rec)
	return nil
}

func (j *recordingJournal) RecordCandles(_ context.Context, _ string, tf domain.Timeframe, candles []domain.Candle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.candles[tf] = append(j.candles[tf], candles...)
	return nil
}

func (j *recordingJournal) RecordTrade(_ context.Context, rec domain.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.trades = append(j.trades, rec)
	return nil
}

func (j *recordingJournal) actions() []domain.SignalAction {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.SignalAction, len(j.signals))
	for i, s := range j.signals {
		out[i] = s.Action
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.Data["type"]
	}
	return out
}

const fiveMinutesMs = int64(5 * time.Minute / time.Millisecond)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		Broker: config.BrokerConfig{Instrument: "XAUUSD"},
		Strategy: config.StrategyConfig{
			EMATrendPeriod:    3,
			EMAFastPeriod:     2,
			EMAPullbackPeriod: 3,
			ATRPeriod:         2,
			PullbackATRTol:    0.4,
			ChopEMADistATRMin: 0.12,
			BigCandleATRMax:   1.5,
			SLBufferATR:       0.15,
			TP1R:              1.0,
			PartialCloseTP1:   0.5,
			SpreadMax:         0.6,
			Scalp: config.ModeConfig{
				Mode: domain.Scalp, EntryTF: domain.M5, TrendTF: domain.M15,
				BOSLookback: 3, ExpiryBars: 6, TP2R: 2.0, SizeUnits: 1,
			},
			Swing: config.ModeConfig{
				Mode: domain.Swing, EntryTF: domain.H1, TrendTF: domain.H4,
				BOSLookback: 3, ExpiryBars: 12, TP2R: 3.0, SizeUnits: 1,
			},
		},
		Risk:    domain.RiskLimits{MaxTradesPerDay: 3, DailyLossLimitUSD: 10, MaxConsecutiveLosses: 3},
		Candles: config.CandleConfig{HistoryBars: 50, IncrementalBars: 6},
		Poll: config.PollConfig{
			Tick: 10 * time.Millisecond,
			Timeframes: map[domain.Timeframe]time.Duration{
				domain.M5:  10 * time.Millisecond,
				domain.M15: 10 * time.Millisecond,
			},
		},
	}
}

// bar builds a candle at index i of a 5 minute series.
func bar(i int, open, high, low, close float64) domain.Candle {
	return domain.Candle{
		Timestamp: baseTime.UnixMilli() + int64(i)*fiveMinutesMs,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    100,
	}
}

// risingCandles closes at 1, 2, ... n with a unit range around each close.
func risingCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		c := float64(i + 1)
		out[i] = bar(i, c-0.2, c+0.5, c-0.5, c)
	}
	return out
}

// fallingCandles closes at n, n-1, ... 1.
func fallingCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		c := float64(n - i)
		out[i] = bar(i, c+0.2, c+0.5, c-0.5, c)
	}
	return out
}

func newTestService(cfg config.Config) (*TradingService, *MockBroker, *recordingJournal, *recordingNotifier) {
	broker := &MockBroker{}
	journal := newRecordingJournal()
	notifier := &recordingNotifier{}
	svc := NewTradingService(Options{
		Broker:   broker,
		Journal:  journal,
		Notifier: notifier,
		Config:   cfg,
		Logger:   zap.NewNop(),
	})
	svc.SetClock(func() time.Time { return baseTime })
	return svc, broker, journal, notifier
}
