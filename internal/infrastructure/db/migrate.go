package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the journal tables. The offline labeler reads signals and M5 candles and
// joins its own labels on signals.id.
var schema = []string{
	`create table if not exists signals (
		id text primary key,
		epic text not null,
		ts bigint not null,
		mode text not null,
		action text not null,
		direction text not null default '',
		features jsonb not null default '{}'::jsonb,
		created_at timestamptz not null default now()
	);`,
	`create index if not exists signals_mode_ts_idx on signals(mode, ts);`,
	`create table if not exists candles (
		epic text not null,
		tf text not null,
		ts bigint not null,
		open double precision not null,
		high double precision not null,
		low double precision not null,
		close double precision not null,
		volume double precision not null default 0,
		primary key (epic, tf, ts)
	);`,
	`create table if not exists trades (
		id bigserial primary key,
		deal_id text not null,
		epic text not null,
		mode text not null,
		direction text not null,
		size double precision not null,
		entry_price double precision not null,
		exit_price double precision not null,
		pnl_usd double precision not null,
		reason text not null,
		opened_at timestamptz null,
		closed_at timestamptz not null
	);`,
	`create index if not exists trades_closed_at_idx on trades(closed_at desc);`,
}

// Migrate creates the journal tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
