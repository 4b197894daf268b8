package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

func (s Side) Valid() bool {
	return s == Bid || s == Ask
}

// Opposite returns the side a taker on s matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func ParseSide(s string) (Side, error) {
	side := Side(s)
	if !side.Valid() {
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
	}
	return side, nil
}

// Order is a GTC limit order. Volume is the remaining volume and is only
// mutated by the actor owning the order's market.
type Order struct {
	ID       string
	OwnerID  string
	Side     Side
	Price    decimal.Decimal
	Volume   decimal.Decimal
	PlacedAt time.Time
	// Seq is stamped by the market actor on arrival; it orders orders
	// resting at the same price.
	Seq uint64
}

func (o *Order) Validate() error {
	if !o.Side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("%w: price must be > 0", ErrInvalidOrder)
	}
	if !o.Volume.IsPositive() {
		return fmt.Errorf("%w: volume must be > 0", ErrInvalidOrder)
	}
	return nil
}

// Locked returns the currency and amount held by the ledger while the order
// rests: quote price*volume for a bid, base volume for an ask.
func (o *Order) Locked(m Market) (string, decimal.Decimal) {
	if o.Side == Bid {
		return m.Quote, o.Price.Mul(o.Volume)
	}
	return m.Base, o.Volume
}

// Refund is the ledger credit produced by cancelling a resting order.
type Refund struct {
	Currency string
	Amount   decimal.Decimal
}
