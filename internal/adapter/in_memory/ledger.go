package in_memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

type balanceKey struct {
	userID   string
	currency string
}

// Ledger keeps balances in process memory.
type Ledger struct {
	mu       sync.Mutex
	balances map[balanceKey]decimal.Decimal
}

var _ port.Ledger = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[balanceKey]decimal.Decimal)}
}

func (l *Ledger) Debit(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit must be > 0", domain.ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey{userID, currency}
	balance := l.balances[k]
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", domain.ErrInsufficientFunds, userID, balance, currency, amount)
	}
	l.balances[k] = balance.Sub(amount)
	return nil
}

func (l *Ledger) Credit(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit must be > 0", domain.ErrInvalidAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey{userID, currency}
	l.balances[k] = l.balances[k].Add(amount)
	return nil
}

func (l *Ledger) Balance(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey{userID, currency}], nil
}

func (l *Ledger) Close() error { return nil }
