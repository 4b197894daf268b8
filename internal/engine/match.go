package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/spot-exchange/internal/domain"
)

// crosses reports whether a taker at price can trade with the maker.
func crosses(taker *domain.Order, maker *domain.Order) bool {
	if taker.Side == domain.Bid {
		return taker.Price.GreaterThanOrEqual(maker.Price)
	}
	return taker.Price.LessThanOrEqual(maker.Price)
}

// Match crosses taker against the opposite side of the book, oldest match
// first, and rests any remainder on the taker's side. Every trade executes
// at the taker's price. The taker is expected to be validated.
func Match(ob *OrderBook, market string, taker *domain.Order, now time.Time) []domain.Trade {
	var trades []domain.Trade
	opposite := taker.Side.Opposite()

	for taker.Volume.IsPositive() {
		maker := ob.Best(opposite)
		if maker == nil || !crosses(taker, maker) {
			break
		}

		matched := decimal.Min(taker.Volume, maker.Volume)
		taker.Volume = taker.Volume.Sub(matched)
		maker.Volume = maker.Volume.Sub(matched)
		if maker.Volume.IsZero() {
			ob.PopBest(opposite)
		}

		tr := domain.Trade{
			ID:           uuid.NewString(),
			Market:       market,
			TakerOrderID: taker.ID,
			MakerOrderID: maker.ID,
			Price:        taker.Price,
			Volume:       matched,
			ExecutedAt:   now,
		}
		if taker.Side == domain.Bid {
			tr.BidPrice = taker.Price
			tr.BuyerID = taker.OwnerID
			tr.SellerID = maker.OwnerID
		} else {
			tr.BidPrice = maker.Price
			tr.BuyerID = maker.OwnerID
			tr.SellerID = taker.OwnerID
		}
		trades = append(trades, tr)
	}

	if taker.Volume.IsPositive() {
		ob.Insert(taker)
	}
	return trades
}
