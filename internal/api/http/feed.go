package http

import (
	"context"
	"sync"

	"github.com/olyamironova/spot-exchange/internal/api/dto"
	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

type subscription[T any] struct {
	ch chan T
}

type hub[T any] struct {
	mu   sync.RWMutex
	subs map[*subscription[T]]struct{}
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: make(map[*subscription[T]]struct{})}
}

func (h *hub[T]) Subscribe(buffer int) *subscription[T] {
	sub := &subscription[T]{ch: make(chan T, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *hub[T]) Unsubscribe(sub *subscription[T]) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
	close(sub.ch)
}

// Broadcast drops the value for subscribers whose buffer is full.
func (h *hub[T]) Broadcast(value T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- value:
		default:
		}
	}
}

// TradeFeed fans executed trades out to WebSocket subscribers of each
// market.
type TradeFeed struct {
	mu   sync.Mutex
	hubs map[string]*hub[dto.Trade]
}

var _ port.EventPublisher = (*TradeFeed)(nil)

func NewTradeFeed() *TradeFeed {
	return &TradeFeed{hubs: make(map[string]*hub[dto.Trade])}
}

func (f *TradeFeed) hub(market string) *hub[dto.Trade] {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hubs[market]
	if !ok {
		h = newHub[dto.Trade]()
		f.hubs[market] = h
	}
	return h
}

func (f *TradeFeed) Subscribe(market string, buffer int) *subscription[dto.Trade] {
	return f.hub(market).Subscribe(buffer)
}

func (f *TradeFeed) Unsubscribe(market string, sub *subscription[dto.Trade]) {
	f.hub(market).Unsubscribe(sub)
}

func (f *TradeFeed) PublishTrades(ctx context.Context, market string, trades []domain.Trade) error {
	h := f.hub(market)
	for _, t := range trades {
		h.Broadcast(dto.FromTrade(t))
	}
	return nil
}
