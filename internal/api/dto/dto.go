package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

type PlaceOrderRequest struct {
	Side   string          `json:"side" binding:"required"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

type PlaceOrderResponse struct {
	OrderID   string          `json:"order_id"`
	Trades    []Trade         `json:"trades"`
	Remaining decimal.Decimal `json:"remaining"`
}

type CancelOrderResponse struct {
	OrderID string `json:"order_id"`
	Refund  Refund `json:"refund"`
}

type Refund struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

type OrderBookResponse struct {
	Market string       `json:"market"`
	Asks   []PriceLevel `json:"asks"`
	Bids   []PriceLevel `json:"bids"`
}

type Trade struct {
	ID           string          `json:"id"`
	Market       string          `json:"market"`
	Seq          uint64          `json:"seq"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerOrderID string          `json:"maker_order_id"`
	BuyerID      string          `json:"buyer_id"`
	SellerID     string          `json:"seller_id"`
	Price        decimal.Decimal `json:"price"`
	Volume       decimal.Decimal `json:"volume"`
	BidPrice     decimal.Decimal `json:"bid_price"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

type TradesResponse struct {
	Trades []Trade `json:"trades"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type BalanceResponse struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type MarketsResponse struct {
	Markets []string `json:"markets"`
}

type Reconciliation struct {
	Market   string          `json:"market"`
	OrderID  string          `json:"order_id"`
	TradeID  string          `json:"trade_id,omitempty"`
	UserID   string          `json:"user_id"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason"`
	At       time.Time       `json:"at"`
}

type ReconciliationsResponse struct {
	Reconciliations []Reconciliation `json:"reconciliations"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	// OrderID is set when the order was matched but not fully settled.
	OrderID string `json:"order_id,omitempty"`
}

func FromTrade(t domain.Trade) Trade {
	return Trade{
		ID:           t.ID,
		Market:       t.Market,
		Seq:          t.Seq,
		TakerOrderID: t.TakerOrderID,
		MakerOrderID: t.MakerOrderID,
		BuyerID:      t.BuyerID,
		SellerID:     t.SellerID,
		Price:        t.Price,
		Volume:       t.Volume,
		BidPrice:     t.BidPrice,
		ExecutedAt:   t.ExecutedAt,
	}
}

func FromTrades(trades []domain.Trade) []Trade {
	res := make([]Trade, len(trades))
	for i, t := range trades {
		res[i] = FromTrade(t)
	}
	return res
}

func FromSnapshot(s *domain.BookSnapshot) OrderBookResponse {
	return OrderBookResponse{
		Market: s.Market,
		Asks:   fromLevels(s.Asks),
		Bids:   fromLevels(s.Bids),
	}
}

func fromLevels(levels []domain.PriceLevel) []PriceLevel {
	res := make([]PriceLevel, len(levels))
	for i, l := range levels {
		res[i] = PriceLevel{Price: l.Price, Volume: l.Volume}
	}
	return res
}

func FromRefund(r domain.Refund) Refund {
	return Refund{Currency: r.Currency, Amount: r.Amount}
}

func FromReconciliations(recs []port.Reconciliation) []Reconciliation {
	res := make([]Reconciliation, len(recs))
	for i, r := range recs {
		res[i] = Reconciliation{
			Market:   r.Market,
			OrderID:  r.OrderID,
			TradeID:  r.TradeID,
			UserID:   r.UserID,
			Currency: r.Currency,
			Amount:   r.Amount,
			Reason:   r.Reason,
			At:       r.At,
		}
	}
	return res
}
