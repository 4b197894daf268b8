package pebble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

var _ port.Ledger = (*Ledger)(nil)

// Ledger persists balances in a local Pebble database.
// Thread-safe: read-modify-write cycles are serialized by mu.
type Ledger struct {
	mu sync.Mutex
	db *pebble.DB
}

// Open opens (or creates) the Pebble database at path.
func Open(path string) (*Ledger, error) {
	cache := pebble.NewCache(16 << 20)
	defer cache.Unref()
	db, err := pebble.Open(path, &pebble.Options{
		Cache:        cache,
		MaxOpenFiles: 256,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func balanceKey(userID, currency string) []byte {
	return []byte("balance/" + userID + "/" + currency)
}

func (l *Ledger) Debit(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit must be > 0", domain.ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey(userID, currency)
	balance, err := l.load(k)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", domain.ErrInsufficientFunds, userID, balance, currency, amount)
	}
	return l.store(k, balance.Sub(amount))
}

func (l *Ledger) Credit(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit must be > 0", domain.ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey(userID, currency)
	balance, err := l.load(k)
	if err != nil {
		return err
	}
	return l.store(k, balance.Add(amount))
}

func (l *Ledger) Balance(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(balanceKey(userID, currency))
}

func (l *Ledger) load(k []byte) (decimal.Decimal, error) {
	data, closer, err := l.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	defer closer.Close()
	b, err := decimal.NewFromString(string(data))
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance under %s: %w", k, err)
	}
	return b, nil
}

func (l *Ledger) store(k []byte, balance decimal.Decimal) error {
	if err := l.db.Set(k, []byte(balance.String()), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}
