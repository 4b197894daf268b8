package grpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/olyamironova/spot-exchange/internal/api/dto"
	"github.com/olyamironova/spot-exchange/internal/core"
	"github.com/olyamironova/spot-exchange/internal/domain"
)

const userMetadataKey = "x-user-id"

var _ ExchangeServer = (*GRPCServer)(nil)

type GRPCServer struct {
	Eng *core.Engine
	log *zap.Logger
}

func NewGRPCServer(eng *core.Engine, log *zap.Logger) *GRPCServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCServer{Eng: eng, log: log}
}

// NewServer returns a grpc.Server with the exchange service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logCalls))
	srv := grpc.NewServer(opts...)
	RegisterExchangeServer(srv, s)
	return srv
}

func (s *GRPCServer) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("code", code.String()),
		zap.Duration("latency", time.Since(start)),
	}
	if code == codes.Internal || code == codes.Unknown {
		s.log.Warn("rpc failed", append(fields, zap.Error(err))...)
	} else {
		s.log.Debug("rpc", fields...)
	}
	return resp, err
}

func userID(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if vals := md.Get(userMetadataKey); len(vals) > 0 && vals[0] != "" {
		return vals[0], nil
	}
	return "", status.Error(codes.Unauthenticated, userMetadataKey+" metadata required")
}

func (s *GRPCServer) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*dto.PlaceOrderResponse, error) {
	user, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err, "")
	}
	res, err := s.Eng.PlaceOrder(ctx, core.PlaceOrderRequest{
		Market: req.Market,
		Side:   side,
		Price:  req.Price,
		Volume: req.Volume,
		UserID: user,
	})
	if err != nil {
		orderID := ""
		if res != nil {
			orderID = res.OrderID
		}
		return nil, toStatus(err, orderID)
	}
	return &dto.PlaceOrderResponse{
		OrderID:   res.OrderID,
		Trades:    dto.FromTrades(res.Trades),
		Remaining: res.Remaining,
	}, nil
}

func (s *GRPCServer) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*dto.CancelOrderResponse, error) {
	user, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	refund, err := s.Eng.CancelOrder(ctx, req.Market, req.OrderID, user)
	if err != nil {
		return nil, toStatus(err, req.OrderID)
	}
	return &dto.CancelOrderResponse{OrderID: req.OrderID, Refund: dto.FromRefund(refund)}, nil
}

func (s *GRPCServer) GetOrderBook(ctx context.Context, req *OrderBookRequest) (*dto.OrderBookResponse, error) {
	ob, err := s.Eng.OrderBook(ctx, req.Market)
	if err != nil {
		return nil, toStatus(err, "")
	}
	resp := dto.FromSnapshot(ob)
	return &resp, nil
}

func (s *GRPCServer) Reset(ctx context.Context, _ *ResetRequest) (*ResetResponse, error) {
	if err := s.Eng.Reset(ctx); err != nil {
		return nil, toStatus(err, "")
	}
	return &ResetResponse{}, nil
}

func (s *GRPCServer) GetBalance(ctx context.Context, req *BalanceRequest) (*dto.BalanceResponse, error) {
	user, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	bal, err := s.Eng.Balance(ctx, user, req.Currency)
	if err != nil {
		return nil, toStatus(err, "")
	}
	return &dto.BalanceResponse{Currency: req.Currency, Balance: bal}, nil
}

func (s *GRPCServer) Deposit(ctx context.Context, req *DepositRequest) (*dto.BalanceResponse, error) {
	user, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Eng.Deposit(ctx, user, req.Currency, req.Amount); err != nil {
		return nil, toStatus(err, "")
	}
	return s.GetBalance(ctx, &BalanceRequest{Currency: req.Currency})
}

func toStatus(err error, orderID string) error {
	switch {
	case errors.Is(err, domain.ErrSettlementIncomplete):
		return status.Errorf(codes.Internal, "order %s: %v", orderID, err)
	case errors.Is(err, domain.ErrInvalidMarketOrCurrency),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInvalidAmount):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrNoSuchOrder):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
