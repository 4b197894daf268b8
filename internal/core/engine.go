package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

// Engine is the settlement bridge: it locks funds in the ledger, hands the
// order to the market actor and credits the parties of every trade.
//
// Debit, match and credits are separate steps. A credit that fails after a
// match is not retried; it is logged and journaled for reconciliation.
type Engine struct {
	registry   *Registry
	ledger     port.Ledger
	journal    port.Journal
	currencies domain.Currencies
	now        func() time.Time
	log        *zap.Logger
}

type Option func(*Engine)

func WithJournal(j port.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

func WithCurrencies(c domain.Currencies) Option {
	return func(e *Engine) { e.currencies = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func NewEngine(registry *Registry, ledger port.Ledger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		ledger:   ledger,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type PlaceOrderRequest struct {
	Market string
	Side   domain.Side
	Price  decimal.Decimal
	Volume decimal.Decimal
	UserID string
}

type PlaceOrderResult struct {
	OrderID   string
	Trades    []domain.Trade
	Remaining decimal.Decimal
}

// PlaceOrder locks the order's funds, matches it and settles the trades.
// When settlement is incomplete the result is returned together with an
// error wrapping domain.ErrSettlementIncomplete.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	m, err := e.currencies.ParseMarket(req.Market)
	if err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: missing user", domain.ErrInvalidOrder)
	}
	o := &domain.Order{
		ID:       uuid.NewString(),
		OwnerID:  req.UserID,
		Side:     req.Side,
		Price:    req.Price,
		Volume:   req.Volume,
		PlacedAt: e.now(),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	actor, err := e.registry.Actor(m)
	if err != nil {
		return nil, err
	}

	currency, amount := o.Locked(m)
	if err := e.ledger.Debit(ctx, o.OwnerID, currency, amount); err != nil {
		return nil, err
	}

	log := e.log.With(
		zap.String("market", m.String()),
		zap.String("order_id", o.ID),
		zap.String("user_id", o.OwnerID),
	)
	orderID := o.ID
	// credits must follow a match even if the caller goes away
	settleCtx := context.WithoutCancel(ctx)

	trades, remaining, err := actor.Place(ctx, o)
	if err != nil {
		if errors.Is(err, errUndelivered) || errors.Is(err, domain.ErrInvalidOrder) {
			log.Warn("order not placed, releasing lock", zap.Error(err))
			if cerr := e.credit(settleCtx, m, orderID, "", o.OwnerID, currency, amount, "release undelivered order"); cerr != nil {
				return nil, errors.Join(err, cerr)
			}
			return nil, err
		}
		e.reconcile(settleCtx, port.Reconciliation{
			Market:   m.String(),
			OrderID:  orderID,
			UserID:   o.OwnerID,
			Currency: currency,
			Amount:   amount,
			Reason:   "market actor stopped before replying",
		}, err)
		return nil, err
	}

	log.Debug("order matched", zap.Int("trades", len(trades)), zap.String("remaining", remaining.String()))
	settleErr := e.settle(settleCtx, m, orderID, trades)
	e.record(settleCtx, m, trades)

	return &PlaceOrderResult{
		OrderID:   orderID,
		Trades:    trades,
		Remaining: remaining,
	}, settleErr
}

func (e *Engine) settle(ctx context.Context, m domain.Market, orderID string, trades []domain.Trade) error {
	var failed error
	for _, tr := range trades {
		if err := e.credit(ctx, m, orderID, tr.ID, tr.BuyerID, m.Base, tr.Volume, "buyer base"); err != nil {
			failed = errors.Join(failed, err)
		}
		if err := e.credit(ctx, m, orderID, tr.ID, tr.SellerID, m.Quote, tr.Volume.Mul(tr.Price), "seller quote"); err != nil {
			failed = errors.Join(failed, err)
		}
		if refund := tr.PriceImprovement(); refund.IsPositive() {
			if err := e.credit(ctx, m, orderID, tr.ID, tr.BuyerID, m.Quote, refund, "buyer price improvement"); err != nil {
				failed = errors.Join(failed, err)
			}
		}
	}
	return failed
}

// credit applies one ledger credit; a failure becomes a reconciliation case
// and an error wrapping domain.ErrSettlementIncomplete.
func (e *Engine) credit(ctx context.Context, m domain.Market, orderID, tradeID, userID, currency string, amount decimal.Decimal, reason string) error {
	err := e.ledger.Credit(ctx, userID, currency, amount)
	if err == nil {
		return nil
	}
	e.reconcile(ctx, port.Reconciliation{
		Market:   m.String(),
		OrderID:  orderID,
		TradeID:  tradeID,
		UserID:   userID,
		Currency: currency,
		Amount:   amount,
		Reason:   reason,
	}, err)
	return fmt.Errorf("%w: credit %s %s to %s: %w", domain.ErrSettlementIncomplete, amount, currency, userID, err)
}

func (e *Engine) reconcile(ctx context.Context, r port.Reconciliation, cause error) {
	r.At = e.now()
	if r.Reason != "" && cause != nil {
		r.Reason = r.Reason + ": " + cause.Error()
	}
	e.log.Error("settlement needs reconciliation",
		zap.String("market", r.Market),
		zap.String("order_id", r.OrderID),
		zap.String("trade_id", r.TradeID),
		zap.String("user_id", r.UserID),
		zap.String("currency", r.Currency),
		zap.String("amount", r.Amount.String()),
		zap.Error(cause),
	)
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveReconciliation(ctx, r); err != nil {
		e.log.Error("failed to journal reconciliation", zap.String("order_id", r.OrderID), zap.Error(err))
	}
}

// record journals trades. Failures are logged only. Publishing happens in
// the registry's per-market dispatchers.
func (e *Engine) record(ctx context.Context, m domain.Market, trades []domain.Trade) {
	if len(trades) == 0 || e.journal == nil {
		return
	}
	if err := e.journal.SaveTrades(ctx, trades); err != nil {
		e.log.Warn("failed to journal trades", zap.String("market", m.String()), zap.Error(err))
	}
}

// CancelOrder removes a resting order and returns its locked funds to the
// owner.
func (e *Engine) CancelOrder(ctx context.Context, market, orderID, userID string) (domain.Refund, error) {
	m, err := e.currencies.ParseMarket(market)
	if err != nil {
		return domain.Refund{}, err
	}
	actor, err := e.registry.Actor(m)
	if err != nil {
		return domain.Refund{}, err
	}
	refund, err := actor.Cancel(ctx, orderID, userID)
	if err != nil {
		return domain.Refund{}, err
	}
	if err := e.credit(context.WithoutCancel(ctx), m, orderID, "", userID, refund.Currency, refund.Amount, "cancel refund"); err != nil {
		return refund, err
	}
	e.log.Debug("order cancelled",
		zap.String("market", m.String()),
		zap.String("order_id", orderID),
		zap.String("user_id", userID),
	)
	return refund, nil
}

// ParseMarket validates a BASE-QUOTE symbol against the configured
// currencies.
func (e *Engine) ParseMarket(market string) (domain.Market, error) {
	return e.currencies.ParseMarket(market)
}

func (e *Engine) OrderBook(ctx context.Context, market string) (*domain.BookSnapshot, error) {
	m, err := e.currencies.ParseMarket(market)
	if err != nil {
		return nil, err
	}
	actor, err := e.registry.Actor(m)
	if err != nil {
		return nil, err
	}
	return actor.Snapshot(ctx)
}

// Reset empties every order book. Funds locked by resting orders are not
// returned.
func (e *Engine) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.registry.Reset()
	return nil
}

func (e *Engine) Markets() []string {
	return e.registry.Markets()
}

func (e *Engine) Balance(ctx context.Context, userID, currency string) (decimal.Decimal, error) {
	if err := e.currencies.Validate(currency); err != nil {
		return decimal.Zero, err
	}
	return e.ledger.Balance(ctx, userID, currency)
}

func (e *Engine) Deposit(ctx context.Context, userID, currency string, amount decimal.Decimal) error {
	if err := e.currencies.Validate(currency); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit must be > 0", domain.ErrInvalidAmount)
	}
	return e.ledger.Credit(ctx, userID, currency, amount)
}

// TradesForOrder returns the journaled trades of an order in which userID
// was the buyer or the seller.
func (e *Engine) TradesForOrder(ctx context.Context, orderID, userID string) ([]domain.Trade, error) {
	if e.journal == nil {
		return []domain.Trade{}, nil
	}
	trades, err := e.journal.TradesForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	own := make([]domain.Trade, 0, len(trades))
	for _, tr := range trades {
		if tr.BuyerID == userID || tr.SellerID == userID {
			own = append(own, tr)
		}
	}
	return own, nil
}

func (e *Engine) Reconciliations(ctx context.Context) ([]port.Reconciliation, error) {
	if e.journal == nil {
		return []port.Reconciliation{}, nil
	}
	return e.journal.PendingReconciliations(ctx)
}
