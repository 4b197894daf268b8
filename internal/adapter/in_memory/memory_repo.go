package in_memory

import (
	"context"
	"sync"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

// Journal keeps executed trades and reconciliation cases in memory.
type Journal struct {
	mu              sync.Mutex
	trades          map[string][]domain.Trade
	reconciliations []port.Reconciliation
}

var _ port.Journal = (*Journal)(nil)

func NewJournal() *Journal {
	return &Journal{trades: make(map[string][]domain.Trade)}
}

func (j *Journal) SaveTrades(ctx context.Context, trades []domain.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, t := range trades {
		j.trades[t.TakerOrderID] = append(j.trades[t.TakerOrderID], t)
		j.trades[t.MakerOrderID] = append(j.trades[t.MakerOrderID], t)
	}
	return nil
}

func (j *Journal) SaveReconciliation(ctx context.Context, r port.Reconciliation) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.reconciliations = append(j.reconciliations, r)
	return nil
}

func (j *Journal) TradesForOrder(ctx context.Context, orderID string) ([]domain.Trade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	res := make([]domain.Trade, len(j.trades[orderID]))
	copy(res, j.trades[orderID])
	return res, nil
}

func (j *Journal) PendingReconciliations(ctx context.Context) ([]port.Reconciliation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	res := make([]port.Reconciliation, len(j.reconciliations))
	copy(res, j.reconciliations)
	return res, nil
}

func (j *Journal) Close(ctx context.Context) {}
