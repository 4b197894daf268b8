package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/spot-exchange/internal/domain"
)

// Reconciliation is a ledger credit owed after a match that could not be
// applied.
type Reconciliation struct {
	Market   string
	OrderID  string
	TradeID  string
	UserID   string
	Currency string
	Amount   decimal.Decimal
	Reason   string
	At       time.Time
}

// Journal is an append-only record of executed trades and settlement
// failures. It is never read back into an order book.
type Journal interface {
	SaveTrades(ctx context.Context, trades []domain.Trade) error
	SaveReconciliation(ctx context.Context, r Reconciliation) error
	TradesForOrder(ctx context.Context, orderID string) ([]domain.Trade, error)
	PendingReconciliations(ctx context.Context) ([]Reconciliation, error)
}
