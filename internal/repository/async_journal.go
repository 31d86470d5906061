package repository

import (
	"context"
	"time"

	"goldbot/internal/domain"

	"go.uber.org/zap"
)

const journalWriteTimeout = 5 * time.Second

type journalEntry struct {
	signal     *domain.SignalRecord
	trade      *domain.TradeRecord
	instrument string
	tf         domain.Timeframe
	candles    []domain.Candle
}

// AsyncJournal queues records and writes them to the wrapped journal from a background loop,
// so a slow database never stalls the trading loops. Records are dropped when the queue is full.
type AsyncJournal struct {
	next   domain.Journal
	queue  chan journalEntry
	logger *zap.Logger
}

func NewAsyncJournal(next domain.Journal, size int, logger *zap.Logger) *AsyncJournal {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncJournal{
		next:   next,
		queue:  make(chan journalEntry, size),
		logger: logger,
	}
}

func (j *AsyncJournal) RecordSignal(_ context.Context, rec domain.SignalRecord) error {
	j.enqueue(journalEntry{signal: &rec})
	return nil
}

func (j *AsyncJournal) RecordCandles(_ context.Context, instrument string, tf domain.Timeframe, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	cp := make([]domain.Candle, len(candles))
	copy(cp, candles)
	j.enqueue(journalEntry{instrument: instrument, tf: tf, candles: cp})
	return nil
}

func (j *AsyncJournal) RecordTrade(_ context.Context, rec domain.TradeRecord) error {
	j.enqueue(journalEntry{trade: &rec})
	return nil
}

func (j *AsyncJournal) enqueue(e journalEntry) {
	select {
	case j.queue <- e:
	default:
		j.logger.Warn("journal queue full, dropping record")
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is already queued.
func (j *AsyncJournal) Run(ctx context.Context) error {
	for {
		select {
		case e := <-j.queue:
			j.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-j.queue:
					j.write(e)
				default:
					return nil
				}
			}
		}
	}
}

func (j *AsyncJournal) write(e journalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	var err error
	switch {
	case e.signal != nil:
		err = j.next.RecordSignal(ctx, *e.signal)
	case e.trade != nil:
		err = j.next.RecordTrade(ctx, *e.trade)
	default:
		err = j.next.RecordCandles(ctx, e.instrument, e.tf, e.candles)
	}
	if err != nil {
		j.logger.Warn("journal write failed", zap.Error(err))
	}
}

// NopJournal discards every record. Used when no database is configured.
type NopJournal struct{}

func (NopJournal) RecordSignal(context.Context, domain.SignalRecord) error { return nil }
func (NopJournal) RecordCandles(context.Context, string, domain.Timeframe, []domain.Candle) error {
	return nil
}
func (NopJournal) RecordTrade(context.Context, domain.TradeRecord) error { return nil }

var (
	_ domain.Journal = (*AsyncJournal)(nil)
	_ domain.Journal = NopJournal{}
)
