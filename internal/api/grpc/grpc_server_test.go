package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/olyamironova/spot-exchange/internal/adapter/in_memory"
	"github.com/olyamironova/spot-exchange/internal/core"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	registry := core.NewRegistry()
	t.Cleanup(registry.Shutdown)
	eng := core.NewEngine(registry, in_memory.NewLedger(), core.WithJournal(in_memory.NewJournal()))

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(eng, nil).NewServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return NewClient(cc)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGRPCTradingRoundTrip(t *testing.T) {
	c := newTestClient(t)
	alice := WithUser(context.Background(), "alice")
	bob := WithUser(context.Background(), "bob")

	bal, err := c.Deposit(alice, &DepositRequest{Currency: "BTC", Amount: d("3")})
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(d("3")))
	_, err = c.Deposit(bob, &DepositRequest{Currency: "ETH", Amount: d("1")})
	require.NoError(t, err)

	bid, err := c.PlaceOrder(alice, &PlaceOrderRequest{Market: "ETH-BTC", Side: "bid", Price: d("3"), Volume: d("1")})
	require.NoError(t, err)
	assert.Empty(t, bid.Trades)

	book, err := c.GetOrderBook(context.Background(), &OrderBookRequest{Market: "ETH-BTC"})
	require.NoError(t, err)
	require.Len(t, book.Bids, 1)
	assert.True(t, book.Bids[0].Price.Equal(d("3")))

	ask, err := c.PlaceOrder(bob, &PlaceOrderRequest{Market: "ETH-BTC", Side: "ask", Price: d("2"), Volume: d("1")})
	require.NoError(t, err)
	require.Len(t, ask.Trades, 1)
	assert.True(t, ask.Trades[0].Price.Equal(d("2")))

	btc, err := c.GetBalance(alice, &BalanceRequest{Currency: "BTC"})
	require.NoError(t, err)
	assert.True(t, btc.Balance.Equal(d("1")), "price improvement is refunded")
	btc, err = c.GetBalance(bob, &BalanceRequest{Currency: "BTC"})
	require.NoError(t, err)
	assert.True(t, btc.Balance.Equal(d("2")))
}

func TestGRPCCancelAndReset(t *testing.T) {
	c := newTestClient(t)
	alice := WithUser(context.Background(), "alice")

	_, err := c.Deposit(alice, &DepositRequest{Currency: "ETH", Amount: d("2")})
	require.NoError(t, err)
	res, err := c.PlaceOrder(alice, &PlaceOrderRequest{Market: "ETH-BTC", Side: "ask", Price: d("1"), Volume: d("2")})
	require.NoError(t, err)

	cancel, err := c.CancelOrder(alice, &CancelOrderRequest{Market: "ETH-BTC", OrderID: res.OrderID})
	require.NoError(t, err)
	assert.True(t, cancel.Refund.Amount.Equal(d("2")))

	_, err = c.CancelOrder(alice, &CancelOrderRequest{Market: "ETH-BTC", OrderID: res.OrderID})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.PlaceOrder(alice, &PlaceOrderRequest{Market: "ETH-BTC", Side: "ask", Price: d("1"), Volume: d("1")})
	require.NoError(t, err)
	require.NoError(t, c.Reset(context.Background()))
	book, err := c.GetOrderBook(context.Background(), &OrderBookRequest{Market: "ETH-BTC"})
	require.NoError(t, err)
	assert.Empty(t, book.Asks)
	assert.Empty(t, book.Bids)
}

func TestGRPCErrorCodes(t *testing.T) {
	c := newTestClient(t)
	alice := WithUser(context.Background(), "alice")

	_, err := c.GetBalance(context.Background(), &BalanceRequest{Currency: "BTC"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.PlaceOrder(alice, &PlaceOrderRequest{Market: "ETH-BTC", Side: "bid", Price: d("1"), Volume: d("1")})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = c.PlaceOrder(alice, &PlaceOrderRequest{Market: "ETH_BTC", Side: "bid", Price: d("1"), Volume: d("1")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.PlaceOrder(alice, &PlaceOrderRequest{Market: "ETH-BTC", Side: "sell", Price: d("1"), Volume: d("1")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Deposit(alice, &DepositRequest{Currency: "BTC", Amount: d("0")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
