package engine

import (
	"sort"

	"github.com/olyamironova/spot-exchange/internal/domain"
)

// OrderBook holds the resting orders of one market. It is not safe for
// concurrent use; the owning market actor serializes access.
type OrderBook struct {
	bids []*domain.Order
	asks []*domain.Order
}

func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// ahead reports whether a has priority over b on the given side:
// bids by price desc, asks by price asc, then earliest Seq first.
func ahead(side domain.Side, a, b *domain.Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		if side == domain.Bid {
			return c > 0
		}
		return c < 0
	}
	return a.Seq < b.Seq
}

func (ob *OrderBook) side(s domain.Side) *[]*domain.Order {
	if s == domain.Bid {
		return &ob.bids
	}
	return &ob.asks
}

// Insert places o at its sorted position on its own side.
func (ob *OrderBook) Insert(o *domain.Order) {
	orders := ob.side(o.Side)
	i := sort.Search(len(*orders), func(i int) bool {
		return ahead(o.Side, o, (*orders)[i])
	})
	*orders = append(*orders, nil)
	copy((*orders)[i+1:], (*orders)[i:])
	(*orders)[i] = o
}

// Best returns the highest priority order on a side, or nil.
func (ob *OrderBook) Best(s domain.Side) *domain.Order {
	orders := *ob.side(s)
	if len(orders) == 0 {
		return nil
	}
	return orders[0]
}

// PopBest removes and returns the highest priority order on a side.
func (ob *OrderBook) PopBest(s domain.Side) *domain.Order {
	orders := ob.side(s)
	if len(*orders) == 0 {
		return nil
	}
	best := (*orders)[0]
	(*orders)[0] = nil
	*orders = (*orders)[1:]
	return best
}

// Remove scans bids then asks for the order with exactly this id and owner.
func (ob *OrderBook) Remove(orderID, ownerID string) (*domain.Order, error) {
	for _, s := range []domain.Side{domain.Bid, domain.Ask} {
		orders := ob.side(s)
		for i, o := range *orders {
			if o.ID == orderID && o.OwnerID == ownerID {
				*orders = append((*orders)[:i], (*orders)[i+1:]...)
				return o, nil
			}
		}
	}
	return nil, domain.ErrNoSuchOrder
}

// Aggregate sums remaining volume per price level, in book order.
func (ob *OrderBook) Aggregate(s domain.Side) []domain.PriceLevel {
	levels := []domain.PriceLevel{}
	for _, o := range *ob.side(s) {
		n := len(levels)
		if n > 0 && levels[n-1].Price.Equal(o.Price) {
			levels[n-1].Volume = levels[n-1].Volume.Add(o.Volume)
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: o.Price, Volume: o.Volume})
	}
	return levels
}

func (ob *OrderBook) Len(s domain.Side) int {
	return len(*ob.side(s))
}

// Orders returns a copy of one side in priority order.
func (ob *OrderBook) Orders(s domain.Side) []domain.Order {
	orders := *ob.side(s)
	res := make([]domain.Order, len(orders))
	for i, o := range orders {
		res[i] = *o
	}
	return res
}
