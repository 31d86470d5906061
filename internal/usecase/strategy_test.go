package usecase

import (
	"testing"

	"goldbot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrend(t *testing.T) {
	s := NewStrategy(testConfig().Strategy)

	assert.Equal(t, domain.TrendNone, s.Trend(risingCandles(2)), "insufficient data")
	assert.Equal(t, domain.TrendUp, s.Trend(risingCandles(6)))
	assert.Equal(t, domain.TrendDown, s.Trend(fallingCandles(6)))

	flat := []domain.Candle{bar(0, 2, 3, 1, 2), bar(1, 2, 3, 1, 2), bar(2, 2, 3, 1, 2)}
	assert.Equal(t, domain.TrendNone, s.Trend(flat))
}

func TestChop(t *testing.T) {
	cfg := testConfig().Strategy
	s := NewStrategy(cfg)

	assert.True(t, s.Chop(risingCandles(2)), "thin data is chop")
	assert.False(t, s.Chop(risingCandles(6)))

	flat := make([]domain.Candle, 6)
	for i := range flat {
		flat[i] = bar(i, 5, 5.5, 4.5, 5)
	}
	assert.True(t, s.Chop(flat), "converged EMAs")

	cfg.ChopEMADistATRMin = 1.0
	assert.True(t, NewStrategy(cfg).Chop(risingCandles(6)))
}

func TestDetectSetup(t *testing.T) {
	s := NewStrategy(testConfig().Strategy)
	candles := risingCandles(6)

	setup := s.DetectSetup(candles, domain.TrendUp)
	require.True(t, setup.Active)
	assert.Equal(t, domain.Buy, setup.Direction)
	assert.Equal(t, 5.5, setup.PullbackExtreme)
	assert.Equal(t, candles[5].Timestamp, setup.CreatedAt)

	assert.False(t, s.DetectSetup(candles, domain.TrendNone).Active)

	cfg := testConfig().Strategy
	cfg.PullbackATRTol = 0.1
	assert.False(t, NewStrategy(cfg).DetectSetup(candles, domain.TrendUp).Active, "bar too far from the pullback EMA")
}

func TestDetectSetupSell(t *testing.T) {
	s := NewStrategy(testConfig().Strategy)
	candles := fallingCandles(6)

	setup := s.DetectSetup(candles, domain.TrendDown)
	require.True(t, setup.Active)
	assert.Equal(t, domain.Sell, setup.Direction)
	assert.Equal(t, 1.5, setup.PullbackExtreme)
}

// bosCandles has prior highs [10, 12, 11] followed by the bar under test.
func bosCandles(current domain.Candle) []domain.Candle {
	return []domain.Candle{
		bar(0, 9.5, 10, 9, 9.5),
		bar(1, 11, 12, 11, 11.5),
		bar(2, 10.8, 11, 10, 10.5),
		current,
	}
}

func TestBreakOfStructure(t *testing.T) {
	cfg := testConfig().Strategy
	cfg.BigCandleATRMax = 1.0
	s := NewStrategy(cfg)
	setup := domain.Setup{Active: true, Direction: domain.Buy, PullbackExtreme: 9}

	tests := []struct {
		name    string
		current domain.Candle
		want    bool
	}{
		{"close above prior high", bar(3, 11.9, 12.6, 11.8, 12.5), true},
		{"close equal to prior high", bar(3, 11.9, 12.6, 11.8, 12.0), false},
		{"close below prior high", bar(3, 11.9, 12.6, 11.8, 11.9), false},
		{"oversized bar", bar(3, 11.1, 14, 11, 12.5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.BreakOfStructure(setup, bosCandles(tt.current), 3))
		})
	}
}

func TestBreakOfStructureSell(t *testing.T) {
	s := NewStrategy(testConfig().Strategy)
	setup := domain.Setup{Active: true, Direction: domain.Sell, PullbackExtreme: 13}

	// prior lows [9, 11, 10]
	assert.True(t, s.BreakOfStructure(setup, bosCandles(bar(3, 9.2, 9.3, 8.6, 8.8)), 3))
	assert.False(t, s.BreakOfStructure(setup, bosCandles(bar(3, 9.2, 9.3, 8.9, 9.0)), 3))
}

func TestBreakOfStructureNeedsLookbackPlusOne(t *testing.T) {
	s := NewStrategy(testConfig().Strategy)
	setup := domain.Setup{Active: true, Direction: domain.Buy}

	assert.False(t, s.BreakOfStructure(setup, bosCandles(bar(3, 11.9, 12.6, 11.8, 12.5)), 4))
	assert.False(t, s.BreakOfStructure(domain.NoSetup, bosCandles(bar(3, 11.9, 12.6, 11.8, 12.5)), 3))
}

func TestComputeLevels(t *testing.T) {
	buy, err := ComputeLevels(domain.Buy, 1900.00, 1905.00, 2.0, 0.15, 1.0, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 1899.70, buy.StopLoss, 1e-9)
	assert.InDelta(t, 5.30, buy.R, 1e-9)
	assert.InDelta(t, 1910.30, buy.TP1, 1e-9)
	assert.InDelta(t, 1915.60, buy.TP2, 1e-9)

	sell, err := ComputeLevels(domain.Sell, 1910.00, 1905.00, 2.0, 0.15, 1.0, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 1910.30, sell.StopLoss, 1e-9)
	assert.InDelta(t, 5.30, sell.R, 1e-9)
	assert.InDelta(t, 1899.70, sell.TP1, 1e-9)
	assert.InDelta(t, 1894.40, sell.TP2, 1e-9)
}

func TestComputeLevelsRejectsInvalidRisk(t *testing.T) {
	_, err := ComputeLevels(domain.Buy, 1900, 1905, 0, 0.15, 1, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidRisk)

	_, err = ComputeLevels(domain.Buy, 1900, 1899, 2.0, 0.15, 1, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidRisk, "entry below the stop")
}

func TestEvaluate(t *testing.T) {
	cfg := testConfig()
	mode := cfg.Strategy.Scalp
	entry := risingCandles(6)
	trend := risingCandles(6)

	t.Run("creates a setup from none", func(t *testing.T) {
		d := NewStrategy(cfg.Strategy).Evaluate(domain.NoSetup, entry, trend, mode)
		assert.Equal(t, EventCreated, d.Event)
		assert.True(t, d.Setup.Active)
		assert.Equal(t, domain.Buy, d.Setup.Direction)
	})

	t.Run("trend lost invalidates", func(t *testing.T) {
		active := domain.NewSetup(domain.Buy, entry[4])
		d := NewStrategy(cfg.Strategy).Evaluate(active, entry, risingCandles(2), mode)
		assert.Equal(t, EventInvalidated, d.Event)
		assert.False(t, d.Setup.Active)
	})

	t.Run("opposite trend invalidates", func(t *testing.T) {
		active := domain.NewSetup(domain.Buy, entry[4])
		d := NewStrategy(cfg.Strategy).Evaluate(active, entry, fallingCandles(6), mode)
		assert.Equal(t, EventInvalidated, d.Event)
	})

	t.Run("chop invalidates", func(t *testing.T) {
		sc := cfg.Strategy
		sc.ChopEMADistATRMin = 1.0
		active := domain.NewSetup(domain.Buy, entry[4])
		d := NewStrategy(sc).Evaluate(active, entry, trend, mode)
		assert.Equal(t, EventInvalidated, d.Event)
	})

	t.Run("expires before trigger", func(t *testing.T) {
		m := mode
		m.ExpiryBars = 2
		active := domain.NewSetup(domain.Buy, entry[0])
		d := NewStrategy(cfg.Strategy).Evaluate(active, entry, trend, m)
		assert.Equal(t, EventExpired, d.Event)
		assert.False(t, d.Setup.Active)
	})

	t.Run("triggers and resets", func(t *testing.T) {
		active := domain.NewSetup(domain.Buy, entry[3])
		d := NewStrategy(cfg.Strategy).Evaluate(active, entry, trend, mode)
		require.Equal(t, EventTriggered, d.Event)
		assert.False(t, d.Setup.Active)
		assert.True(t, d.Triggered.Active)
		assert.Equal(t, 3.5, d.Triggered.PullbackExtreme)
		assert.Greater(t, d.ATR, 0.0)
	})

	t.Run("tightens while waiting", func(t *testing.T) {
		sc := cfg.Strategy
		sc.BigCandleATRMax = 0.5
		active := domain.Setup{Active: true, Direction: domain.Buy, CreatedAt: entry[4].Timestamp, PullbackExtreme: 7}
		d := NewStrategy(sc).Evaluate(active, entry, trend, mode)
		assert.Equal(t, EventTightened, d.Event)
		assert.True(t, d.Setup.Active)
		assert.Equal(t, 5.5, d.Setup.PullbackExtreme)
	})

	t.Run("never detects a second setup while one is active", func(t *testing.T) {
		sc := cfg.Strategy
		sc.BigCandleATRMax = 0.5
		active := domain.Setup{Active: true, Direction: domain.Buy, CreatedAt: entry[4].Timestamp, PullbackExtreme: 5}
		d := NewStrategy(sc).Evaluate(active, entry, trend, mode)
		assert.NotEqual(t, EventCreated, d.Event)
		assert.Equal(t, active.CreatedAt, d.Setup.CreatedAt)
	})
}
