package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"goldbot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresJournal writes signals, closed candles and realized trades for the offline labeler.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

func (j *PostgresJournal) RecordSignal(ctx context.Context, rec domain.SignalRecord) error {
	features, err := signalFeaturesJSON(rec)
	if err != nil {
		return err
	}

	_, err = j.pool.Exec(ctx, `
		insert into signals(id, epic, ts, mode, action, direction, features)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (id) do nothing
	`,
		rec.ID,
		rec.Instrument,
		rec.Timestamp,
		string(rec.Mode),
		string(rec.Action),
		rec.Direction.String(),
		features,
	)
	if err != nil {
		return fmt.Errorf("insert signal %s: %w", rec.ID, err)
	}
	return nil
}

func (j *PostgresJournal) RecordCandles(ctx context.Context, instrument string, tf domain.Timeframe, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			insert into candles(epic, tf, ts, open, high, low, close, volume)
			values ($1,$2,$3,$4,$5,$6,$7,$8)
			on conflict (epic, tf, ts) do nothing
		`, instrument, string(tf), c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	results := j.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range candles {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert %s candles: %w", tf, err)
		}
	}
	return nil
}

func (j *PostgresJournal) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	_, err := j.pool.Exec(ctx, `
		insert into trades(
			deal_id, epic, mode, direction, size,
			entry_price, exit_price, pnl_usd, reason,
			opened_at, closed_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		rec.DealID,
		rec.Instrument,
		string(rec.Mode),
		rec.Direction.String(),
		rec.Size,
		rec.Entry,
		rec.Exit,
		decimal.NewFromFloat(rec.PnL).Round(2).InexactFloat64(),
		string(rec.Reason),
		nullableTime(rec.OpenedAt),
		rec.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", rec.DealID, err)
	}
	return nil
}

// signalFeaturesJSON builds the features document; the labeler reads candidate_direction from it.
func signalFeaturesJSON(rec domain.SignalRecord) ([]byte, error) {
	doc := make(map[string]any, len(rec.Features)+1)
	for k, v := range rec.Features {
		doc[k] = v
	}
	if d := rec.Direction.String(); d != "" {
		doc["candidate_direction"] = d
	}
	return json.Marshal(doc)
}

func nullableTime(v time.Time) any {
	if v.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Valid: true, Time: v}
}

// compile-time check
var _ domain.Journal = (*PostgresJournal)(nil)
