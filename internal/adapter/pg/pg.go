package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

var _ port.Journal = (*PgJournal)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trades(
  id TEXT PRIMARY KEY,
  market TEXT NOT NULL,
  seq BIGINT NOT NULL DEFAULT 0,
  taker_order TEXT NOT NULL,
  maker_order TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  price NUMERIC NOT NULL,
  volume NUMERIC NOT NULL,
  bid_price NUMERIC NOT NULL,
  executed_at TIMESTAMPTZ NOT NULL
)`,
	`ALTER TABLE trades ADD COLUMN IF NOT EXISTS seq BIGINT NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS trades_taker_order_idx ON trades(taker_order)`,
	`CREATE INDEX IF NOT EXISTS trades_maker_order_idx ON trades(maker_order)`,
	`CREATE TABLE IF NOT EXISTS reconciliations(
  id BIGSERIAL PRIMARY KEY,
  market TEXT NOT NULL,
  order_id TEXT NOT NULL,
  trade_id TEXT NOT NULL DEFAULT '',
  user_id TEXT NOT NULL,
  currency TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  reason TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  resolved_at TIMESTAMPTZ
)`,
}

// PgJournal appends trades and reconciliation cases to PostgreSQL.
type PgJournal struct {
	pool *pgxpool.Pool
}

// call Close when finish to work with database.
func NewPgJournal(ctx context.Context, dsn string) (*PgJournal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &PgJournal{pool: pool}, nil
}

func (p *PgJournal) Close(ctx context.Context) {
	if p.pool != nil {
		p.pool.Close()
	}
}

// InitSchema creates the journal tables if they do not exist.
func (p *PgJournal) InitSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pg: init schema: %w", err)
		}
	}
	return nil
}

// SaveTrades inserts all trades of one match in a single transaction.
func (p *PgJournal) SaveTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return withTx(ctx, p.pool, func(tx pgx.Tx) error {
		for _, t := range trades {
			_, err := tx.Exec(ctx, `
INSERT INTO trades(id, market, seq, taker_order, maker_order, buyer_id, seller_id, price, volume, bid_price, executed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING
`, t.ID, t.Market, int64(t.Seq), t.TakerOrderID, t.MakerOrderID, t.BuyerID, t.SellerID,
				t.Price.String(), t.Volume.String(), t.BidPrice.String(), t.ExecutedAt)
			if err != nil {
				return fmt.Errorf("pg: save trade %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

func (p *PgJournal) SaveReconciliation(ctx context.Context, r port.Reconciliation) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO reconciliations(market, order_id, trade_id, user_id, currency, amount, reason, created_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)
`, r.Market, r.OrderID, r.TradeID, r.UserID, r.Currency, r.Amount.String(), r.Reason, r.At)
	if err != nil {
		return fmt.Errorf("pg: save reconciliation for %s: %w", r.OrderID, err)
	}
	return nil
}

// TradesForOrder returns the trades an order took part in, oldest first.
func (p *PgJournal) TradesForOrder(ctx context.Context, orderID string) ([]domain.Trade, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, market, seq, taker_order, maker_order, buyer_id, seller_id, price::text, volume::text, bid_price::text, executed_at
FROM trades
WHERE taker_order = $1 OR maker_order = $1
ORDER BY executed_at ASC, seq ASC, id ASC
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []domain.Trade{}
	for rows.Next() {
		var (
			t                       domain.Trade
			seq                     int64
			price, volume, bidPrice string
		)
		if err := rows.Scan(&t.ID, &t.Market, &seq, &t.TakerOrderID, &t.MakerOrderID, &t.BuyerID, &t.SellerID, &price, &volume, &bidPrice, &t.ExecutedAt); err != nil {
			return nil, err
		}
		t.Seq = uint64(seq)
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if t.Volume, err = decimal.NewFromString(volume); err != nil {
			return nil, err
		}
		if t.BidPrice, err = decimal.NewFromString(bidPrice); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// PendingReconciliations lists unresolved cases in the order they were
// recorded.
func (p *PgJournal) PendingReconciliations(ctx context.Context) ([]port.Reconciliation, error) {
	rows, err := p.pool.Query(ctx, `
SELECT market, order_id, trade_id, user_id, currency, amount::text, reason, created_at
FROM reconciliations
WHERE resolved_at IS NULL
ORDER BY id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []port.Reconciliation{}
	for rows.Next() {
		var (
			r      port.Reconciliation
			amount string
		)
		if err := rows.Scan(&r.Market, &r.OrderID, &r.TradeID, &r.UserID, &r.Currency, &amount, &r.Reason, &r.At); err != nil {
			return nil, err
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}
