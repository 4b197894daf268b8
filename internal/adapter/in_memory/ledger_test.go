package in_memory

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/spot-exchange/internal/domain"
)

func TestLedgerDebitCredit(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	bal, err := l.Balance(ctx, "alice", "BTC")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	require.ErrorIs(t, l.Debit(ctx, "alice", "BTC", decimal.NewFromInt(1)), domain.ErrInsufficientFunds)

	require.NoError(t, l.Credit(ctx, "alice", "BTC", decimal.RequireFromString("1.5")))
	require.NoError(t, l.Debit(ctx, "alice", "BTC", decimal.NewFromInt(1)))
	require.ErrorIs(t, l.Debit(ctx, "alice", "BTC", decimal.NewFromInt(1)), domain.ErrInsufficientFunds)

	bal, _ = l.Balance(ctx, "alice", "BTC")
	assert.True(t, bal.Equal(decimal.RequireFromString("0.5")))

	other, _ := l.Balance(ctx, "alice", "ETH")
	assert.True(t, other.IsZero())

	require.ErrorIs(t, l.Credit(ctx, "alice", "BTC", decimal.Zero), domain.ErrInvalidAmount)
}

func TestLedgerConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	require.NoError(t, l.Credit(ctx, "bob", "ETH", decimal.NewFromInt(10)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Debit(ctx, "bob", "ETH", decimal.NewFromInt(1)) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	bal, _ := l.Balance(ctx, "bob", "ETH")
	assert.True(t, bal.IsZero())
}

func TestJournalIndexesBothOrders(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()
	tr := domain.Trade{ID: "t1", TakerOrderID: "taker", MakerOrderID: "maker", Volume: decimal.NewFromInt(1)}
	require.NoError(t, j.SaveTrades(ctx, []domain.Trade{tr}))

	for _, id := range []string{"taker", "maker"} {
		got, err := j.TradesForOrder(ctx, id)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "t1", got[0].ID)
	}
	none, err := j.TradesForOrder(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}
