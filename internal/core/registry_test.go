package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/spot-exchange/internal/domain"
)

var ethBtc = domain.Market{Base: "ETH", Quote: "BTC"}

func newOrder(id, owner string, side domain.Side, price, volume string) *domain.Order {
	return &domain.Order{
		ID:       id,
		OwnerID:  owner,
		Side:     side,
		Price:    decimal.RequireFromString(price),
		Volume:   decimal.RequireFromString(volume),
		PlacedAt: time.Now(),
	}
}

func TestRegistrySpawnsOneActorPerMarket(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	a1, err := r.Actor(ethBtc)
	require.NoError(t, err)
	a2, err := r.Actor(domain.Market{Base: "ETH", Quote: "BTC"})
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	a3, err := r.Actor(domain.Market{Base: "001", Quote: "002"})
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
	assert.Equal(t, []string{"001-002", "ETH-BTC"}, r.Markets())
}

func TestActorPlaceCancelSnapshot(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	defer r.Shutdown()
	a, err := r.Actor(ethBtc)
	require.NoError(t, err)

	trades, remaining, err := a.Place(ctx, newOrder("b1", "alice", domain.Bid, "2", "3"))
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.True(t, remaining.Equal(decimal.NewFromInt(3)))

	snap, err := a.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 1)
	assert.Empty(t, snap.Asks)
	assert.Equal(t, "ETH-BTC", snap.Market)

	_, err = a.Cancel(ctx, "b1", "bob")
	require.ErrorIs(t, err, domain.ErrNoSuchOrder)

	refund, err := a.Cancel(ctx, "b1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "BTC", refund.Currency)
	assert.True(t, refund.Amount.Equal(decimal.NewFromInt(6)))

	_, err = a.Cancel(ctx, "b1", "alice")
	require.ErrorIs(t, err, domain.ErrNoSuchOrder)

	snap, err = a.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestActorRejectsInvalidOrder(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()
	a, _ := r.Actor(ethBtc)

	_, _, err := a.Place(context.Background(), newOrder("x", "alice", domain.Bid, "1", "0"))
	require.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestActorSerializesConcurrentCommands(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(WithInboxSize(8))
	defer r.Shutdown()
	a, _ := r.Actor(ethBtc)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := a.Place(ctx, newOrder(fmt.Sprint(i), "alice", domain.Ask, "1", "1"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := a.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Volume.Equal(decimal.NewFromInt(n)))

	trades, remaining, err := a.Place(ctx, newOrder("sweep", "bob", domain.Bid, "1", fmt.Sprint(n)))
	require.NoError(t, err)
	assert.Len(t, trades, n)
	assert.True(t, remaining.IsZero())
}

func TestActorsOfDifferentMarketsRunIndependently(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	defer r.Shutdown()

	var wg sync.WaitGroup
	for m := 0; m < 5; m++ {
		market := domain.Market{Base: fmt.Sprintf("%03d", 2*m+1), Quote: fmt.Sprintf("%03d", 2*m+2)}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := r.Actor(market)
			if !assert.NoError(t, err) {
				return
			}
			for i := 0; i < 50; i++ {
				_, _, err := a.Place(ctx, newOrder(fmt.Sprint(i), "u", domain.Bid, "1", "1"))
				assert.NoError(t, err)
			}
			trades, _, err := a.Place(ctx, newOrder("ask", "v", domain.Ask, "1", "50"))
			assert.NoError(t, err)
			assert.Len(t, trades, 50)
		}()
	}
	wg.Wait()
	assert.Len(t, r.Markets(), 5)
}

func TestRegistryResetEmptiesBooks(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	defer r.Shutdown()

	old, _ := r.Actor(ethBtc)
	_, _, err := old.Place(ctx, newOrder("b1", "alice", domain.Bid, "1", "1"))
	require.NoError(t, err)

	r.Reset()

	_, _, err = old.Place(ctx, newOrder("b2", "alice", domain.Bid, "1", "1"))
	require.ErrorIs(t, err, domain.ErrActorStopped)

	fresh, err := r.Actor(ethBtc)
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	snap, err := fresh.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.Equal(t, []string{"ETH-BTC"}, r.Markets())
}

func TestRegistryShutdown(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Actor(ethBtc)
	r.Shutdown()
	r.Shutdown()

	_, err := r.Actor(ethBtc)
	require.ErrorIs(t, err, domain.ErrRegistryClosed)
	_, err = a.Snapshot(context.Background())
	require.ErrorIs(t, err, domain.ErrActorStopped)
	assert.Empty(t, r.Markets())
}

func TestRegistryShutdownPublishesQueuedTrades(t *testing.T) {
	pub := &recordingPublisher{trades: make(map[string][]domain.Trade)}
	r := NewRegistry(WithTradePublisher(pub))
	a, err := r.Actor(ethBtc)
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = a.Place(ctx, newOrder("o1", "alice", domain.Bid, "1", "2"))
	require.NoError(t, err)
	trades, _, err := a.Place(ctx, newOrder("o2", "bob", domain.Ask, "1", "2"))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	r.Shutdown()
	published := pub.published("ETH-BTC")
	require.Len(t, published, 1)
	assert.Equal(t, trades[0].ID, published[0].ID)
	assert.Equal(t, uint64(1), published[0].Seq)
}
