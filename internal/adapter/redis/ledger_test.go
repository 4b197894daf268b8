package redis

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/spot-exchange/internal/domain"
)

func newTestLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l := NewLedger(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestLedgerDebitCredit(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLedger(t)
	require.NoError(t, l.Ping(ctx))

	bal, err := l.Balance(ctx, "alice", "BTC")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	require.ErrorIs(t, l.Debit(ctx, "alice", "BTC", decimal.NewFromInt(1)), domain.ErrInsufficientFunds)

	require.NoError(t, l.Credit(ctx, "alice", "BTC", decimal.RequireFromString("1.5")))
	require.NoError(t, l.Debit(ctx, "alice", "BTC", decimal.RequireFromString("0.25")))

	bal, err = l.Balance(ctx, "alice", "BTC")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("1.25")))

	stored, err := mr.Get("balance_alice_BTC")
	require.NoError(t, err)
	assert.Equal(t, "1.25", stored)

	require.ErrorIs(t, l.Debit(ctx, "alice", "BTC", decimal.NewFromInt(2)), domain.ErrInsufficientFunds)
	require.ErrorIs(t, l.Credit(ctx, "alice", "BTC", decimal.NewFromInt(-1)), domain.ErrInvalidAmount)
	bal, _ = l.Balance(ctx, "alice", "BTC")
	assert.True(t, bal.Equal(decimal.RequireFromString("1.25")))
}

func TestLedgerCorruptBalance(t *testing.T) {
	l, mr := newTestLedger(t)
	require.NoError(t, mr.Set("balance_bob_ETH", "not-a-number"))

	_, err := l.Balance(context.Background(), "bob", "ETH")
	require.Error(t, err)
	require.Error(t, l.Credit(context.Background(), "bob", "ETH", decimal.NewFromInt(1)))
}

func TestLedgerConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.Credit(ctx, "alice", "ETH", decimal.NewFromInt(5)))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Debit(ctx, "alice", "ETH", decimal.NewFromInt(1)) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	bal, err := l.Balance(ctx, "alice", "ETH")
	require.NoError(t, err)
	assert.False(t, bal.IsNegative())
	assert.True(t, bal.Equal(decimal.NewFromInt(int64(5-ok))))
}
