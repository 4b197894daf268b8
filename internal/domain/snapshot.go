package domain

import "github.com/shopspring/decimal"

type PriceLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// BookSnapshot aggregates resting volume per price. Asks are ascending and
// bids descending by price.
type BookSnapshot struct {
	Market string
	Asks   []PriceLevel
	Bids   []PriceLevel
}

func (s *BookSnapshot) Empty() bool {
	return len(s.Asks) == 0 && len(s.Bids) == 0
}
