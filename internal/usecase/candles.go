package usecase

import (
	"context"
	"fmt"
	"time"

	"goldbot/internal/domain"
	"goldbot/internal/repository"

	"go.uber.org/zap"
)

// CandleFeed keeps one closed-bar store per timeframe in sync with the broker.
type CandleFeed struct {
	broker          domain.Broker
	journal         domain.Journal
	instrument      string
	stores          map[domain.Timeframe]*repository.CandleStore
	order           []domain.Timeframe
	historyBars     int
	incrementalBars int
	logger          *zap.Logger
}

func NewCandleFeed(
	broker domain.Broker,
	journal domain.Journal,
	instrument string,
	timeframes []domain.Timeframe,
	historyBars, incrementalBars int,
	logger *zap.Logger,
) *CandleFeed {
	stores := make(map[domain.Timeframe]*repository.CandleStore, len(timeframes))
	for _, tf := range timeframes {
		stores[tf] = repository.NewCandleStore(historyBars)
	}
	return &CandleFeed{
		broker:          broker,
		journal:         journal,
		instrument:      instrument,
		stores:          stores,
		order:           timeframes,
		historyBars:     historyBars,
		incrementalBars: incrementalBars,
		logger:          logger,
	}
}

func (f *CandleFeed) store(tf domain.Timeframe) (*repository.CandleStore, error) {
	s, ok := f.stores[tf]
	if !ok {
		return nil, fmt.Errorf("timeframe %s is not tracked", tf)
	}
	return s, nil
}

// dropForming removes the newest bar, which the broker returns while it is still forming.
func dropForming(candles []domain.Candle) []domain.Candle {
	if len(candles) == 0 {
		return candles
	}
	return candles[:len(candles)-1]
}

// LoadHistory replaces the store for tf with a full history fetch.
func (f *CandleFeed) LoadHistory(ctx context.Context, tf domain.Timeframe) error {
	s, err := f.store(tf)
	if err != nil {
		return err
	}
	fetched, err := f.broker.FetchCandles(ctx, f.instrument, tf, f.historyBars+1)
	if err != nil {
		return fmt.Errorf("load %s history: %w", tf, err)
	}
	closed := dropForming(fetched)
	s.Replace(closed)
	f.record(ctx, tf, closed)

	f.logger.Info("Candle history loaded",
		zap.String("timeframe", tf.String()),
		zap.Int("bars", s.Len()),
	)
	return nil
}

// Update merges the most recent closed bars into tf's store.
// It returns true only when a bar newer than the last known close arrived.
func (f *CandleFeed) Update(ctx context.Context, tf domain.Timeframe) (bool, error) {
	s, err := f.store(tf)
	if err != nil {
		return false, err
	}
	fetched, err := f.broker.FetchCandles(ctx, f.instrument, tf, f.incrementalBars+1)
	if err != nil {
		return false, fmt.Errorf("update %s candles: %w", tf, err)
	}
	closed := dropForming(fetched)
	if len(closed) == 0 {
		return false, nil
	}

	advanced, added := s.Merge(closed)
	if len(added) > 0 {
		f.record(ctx, tf, added)
	}
	if advanced {
		f.logger.Debug("Candle closed",
			zap.String("timeframe", tf.String()),
			zap.Time("bar", time.UnixMilli(s.LastClosed()).UTC()),
		)
	}
	return advanced, nil
}

func (f *CandleFeed) record(ctx context.Context, tf domain.Timeframe, candles []domain.Candle) {
	if len(candles) == 0 {
		return
	}
	if err := f.journal.RecordCandles(ctx, f.instrument, tf, candles); err != nil {
		f.logger.Warn("Failed to journal candles", zap.String("timeframe", tf.String()), zap.Error(err))
	}
}

// Candles returns a copy of the closed bars of tf, oldest first.
func (f *CandleFeed) Candles(tf domain.Timeframe) []domain.Candle {
	s, ok := f.stores[tf]
	if !ok {
		return nil
	}
	return s.Candles()
}

// Timeframes lists the tracked timeframes.
func (f *CandleFeed) Timeframes() []domain.Timeframe {
	return append([]domain.Timeframe(nil), f.order...)
}
