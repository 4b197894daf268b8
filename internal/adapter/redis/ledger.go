package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

// maxTxRetries bounds optimistic-lock retries on a contended balance key.
const maxTxRetries = 16

var _ port.Ledger = (*Ledger)(nil)

// Ledger stores balances as decimal strings under balance_{user}_{currency}.
// Every update runs as a WATCH/MULTI/EXEC transaction on its single key.
type Ledger struct {
	client *goredis.Client
}

func NewLedger(addr string, password string, db int) *Ledger {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Ledger{client: rdb}
}

func key(userID, currency string) string { return "balance_" + userID + "_" + currency }

func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Ledger) Close() error {
	return l.client.Close()
}

func (l *Ledger) Debit(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit must be > 0", domain.ErrInvalidAmount)
	}
	return l.update(ctx, key(userID, currency), func(balance decimal.Decimal) (decimal.Decimal, error) {
		if balance.LessThan(amount) {
			return balance, fmt.Errorf("%w: %s has %s %s, needs %s", domain.ErrInsufficientFunds, userID, balance, currency, amount)
		}
		return balance.Sub(amount), nil
	})
}

func (l *Ledger) Credit(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit must be > 0", domain.ErrInvalidAmount)
	}
	return l.update(ctx, key(userID, currency), func(balance decimal.Decimal) (decimal.Decimal, error) {
		return balance.Add(amount), nil
	})
}

func (l *Ledger) Balance(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	return parseBalance(l.client.Get(ctx, key(userID, currency)))
}

func (l *Ledger) update(ctx context.Context, k string, fn func(decimal.Decimal) (decimal.Decimal, error)) error {
	txf := func(tx *goredis.Tx) error {
		balance, err := parseBalance(tx.Get(ctx, k))
		if err != nil {
			return err
		}
		next, err := fn(balance)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, k, next.String(), 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := l.client.Watch(ctx, txf, k)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis ledger: %s: too many concurrent updates", k)
}

func parseBalance(cmd *goredis.StringCmd) (decimal.Decimal, error) {
	s, err := cmd.Result()
	if errors.Is(err, goredis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis ledger: get balance: %w", err)
	}
	b, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis ledger: corrupt balance %q: %w", s, err)
	}
	return b, nil
}
