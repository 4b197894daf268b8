package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger holds user balances. Each call is atomic on its own; callers never
// combine calls into a larger transaction.
type Ledger interface {
	// Debit fails with domain.ErrInsufficientFunds when the balance is
	// below amount.
	Debit(ctx context.Context, userID, currency string, amount decimal.Decimal) error
	Credit(ctx context.Context, userID, currency string, amount decimal.Decimal) error
	Balance(ctx context.Context, userID, currency string) (decimal.Decimal, error)
}
