package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one matched fill. Price is the taker's quoted price, BidPrice
// the price quoted by whichever party held the bid. Seq numbers a market's
// trades in execution order, starting at 1.
type Trade struct {
	ID           string
	Market       string
	Seq          uint64
	TakerOrderID string
	MakerOrderID string
	BuyerID      string
	SellerID     string
	Price        decimal.Decimal
	Volume       decimal.Decimal
	BidPrice     decimal.Decimal
	ExecutedAt   time.Time
}

// PriceImprovement is the quote amount the buyer locked but did not spend.
func (t Trade) PriceImprovement() decimal.Decimal {
	diff := t.BidPrice.Sub(t.Price)
	if !diff.IsPositive() {
		return decimal.Zero
	}
	return t.Volume.Mul(diff)
}
