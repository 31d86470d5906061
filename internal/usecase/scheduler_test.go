package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"goldbot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestNextUTCMidnight(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"mid day", time.Date(2026, 3, 2, 13, 45, 0, 0, time.UTC), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"end of month", time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"leap day", time.Date(2028, 2, 28, 6, 0, 0, 0, time.UTC), time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"end of year", time.Date(2026, 12, 31, 18, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"exactly midnight", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"non UTC input", time.Date(2026, 3, 2, 23, 30, 0, 0, time.FixedZone("UTC+2", 2*3600)), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextUTCMidnight(tt.in))
		})
	}
}

type countingSession struct {
	calls atomic.Int32
}

func (s *countingSession) RefreshSession(context.Context) error {
	s.calls.Add(1)
	return nil
}

func TestSchedulerRunsTasksUntilCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Poll.SessionRefresh = 10 * time.Millisecond
	svc, broker, _, _ := newTestService(cfg)

	broker.On("FetchCandles", mock.Anything, "XAUUSD", mock.Anything, 7).Return([]domain.Candle{}, nil)
	session := &countingSession{}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := NewScheduler(svc, session, cfg.Poll, zap.NewNop()).Run(ctx)
	assert.NoError(t, err)

	broker.AssertCalled(t, "FetchCandles", mock.Anything, "XAUUSD", domain.M5, 7)
	broker.AssertCalled(t, "FetchCandles", mock.Anything, "XAUUSD", domain.M15, 7)
	broker.AssertNotCalled(t, "FetchQuote", mock.Anything, mock.Anything)
	assert.Positive(t, session.calls.Load())
}

func TestSchedulerNeverOverlapsSlowTimeframeFetch(t *testing.T) {
	cfg := testConfig()
	svc, broker, _, _ := newTestService(cfg)

	var inFlight, peak, calls atomic.Int32
	broker.On("FetchCandles", mock.Anything, "XAUUSD", domain.M5, 7).
		Run(func(mock.Arguments) {
			calls.Add(1)
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			// slower than the 10ms poll interval
			time.Sleep(30 * time.Millisecond)
			inFlight.Add(-1)
		}).
		Return([]domain.Candle{}, nil)
	broker.On("FetchCandles", mock.Anything, "XAUUSD", domain.M15, 7).Return([]domain.Candle{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	assert.NoError(t, NewScheduler(svc, nil, cfg.Poll, zap.NewNop()).Run(ctx))

	assert.GreaterOrEqual(t, calls.Load(), int32(2))
	assert.Equal(t, int32(1), peak.Load())
}

func TestSchedulerSessionRefreshWaitsOneInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Poll.SessionRefresh = time.Hour
	svc, broker, _, _ := newTestService(cfg)
	broker.On("FetchCandles", mock.Anything, "XAUUSD", mock.Anything, 7).Return([]domain.Candle{}, nil)
	session := &countingSession{}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.NoError(t, NewScheduler(svc, session, cfg.Poll, zap.NewNop()).Run(ctx))
	assert.Zero(t, session.calls.Load())
}
