package grpc

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/olyamironova/spot-exchange/internal/api/dto"
)

const serviceName = "exchange.Exchange"

type PlaceOrderRequest struct {
	Market string          `json:"market"`
	Side   string          `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

type CancelOrderRequest struct {
	Market  string `json:"market"`
	OrderID string `json:"order_id"`
}

type OrderBookRequest struct {
	Market string `json:"market"`
}

type ResetRequest struct{}

type ResetResponse struct{}

type BalanceRequest struct {
	Currency string `json:"currency"`
}

type DepositRequest struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// ExchangeServer is the server API of the exchange.Exchange service.
type ExchangeServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*dto.PlaceOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*dto.CancelOrderResponse, error)
	GetOrderBook(context.Context, *OrderBookRequest) (*dto.OrderBookResponse, error)
	Reset(context.Context, *ResetRequest) (*ResetResponse, error)
	GetBalance(context.Context, *BalanceRequest) (*dto.BalanceResponse, error)
	Deposit(context.Context, *DepositRequest) (*dto.BalanceResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExchangeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PlaceOrder", ExchangeServer.PlaceOrder),
		unary("CancelOrder", ExchangeServer.CancelOrder),
		unary("GetOrderBook", ExchangeServer.GetOrderBook),
		unary("Reset", ExchangeServer.Reset),
		unary("GetBalance", ExchangeServer.GetBalance),
		unary("Deposit", ExchangeServer.Deposit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "exchange",
}

func RegisterExchangeServer(s grpc.ServiceRegistrar, srv ExchangeServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ExchangeServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExchangeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExchangeServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
