package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/olyamironova/spot-exchange/internal/api/dto"
)

// Client calls exchange.Exchange over a connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithUser attaches the caller's user id to outgoing calls.
func WithUser(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, userMetadataKey, userID)
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(codecName))
}

func (c *Client) PlaceOrder(ctx context.Context, in *PlaceOrderRequest) (*dto.PlaceOrderResponse, error) {
	out := new(dto.PlaceOrderResponse)
	if err := c.invoke(ctx, "PlaceOrder", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelOrder(ctx context.Context, in *CancelOrderRequest) (*dto.CancelOrderResponse, error) {
	out := new(dto.CancelOrderResponse)
	if err := c.invoke(ctx, "CancelOrder", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrderBook(ctx context.Context, in *OrderBookRequest) (*dto.OrderBookResponse, error) {
	out := new(dto.OrderBookResponse)
	if err := c.invoke(ctx, "GetOrderBook", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Reset(ctx context.Context) error {
	return c.invoke(ctx, "Reset", &ResetRequest{}, &ResetResponse{})
}

func (c *Client) GetBalance(ctx context.Context, in *BalanceRequest) (*dto.BalanceResponse, error) {
	out := new(dto.BalanceResponse)
	if err := c.invoke(ctx, "GetBalance", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Deposit(ctx context.Context, in *DepositRequest) (*dto.BalanceResponse, error) {
	out := new(dto.BalanceResponse)
	if err := c.invoke(ctx, "Deposit", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
