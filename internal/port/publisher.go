package port

import (
	"context"

	"github.com/olyamironova/spot-exchange/internal/domain"
)

// EventPublisher fans executed trades out to market data consumers.
type EventPublisher interface {
	PublishTrades(ctx context.Context, market string, trades []domain.Trade) error
}
