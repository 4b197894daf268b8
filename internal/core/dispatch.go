package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

const (
	defaultPublishQueue   = 1024
	defaultPublishTimeout = 2 * time.Second
)

// dispatcher delivers one market's trades to the publishers in the order
// the market actor executed them. It runs on its own goroutine so a slow
// publisher never holds up matching or settlement.
type dispatcher struct {
	market     string
	queue      chan []domain.Trade
	publishers []port.EventPublisher
	timeout    time.Duration
	closeOnce  sync.Once
	done       chan struct{}
	log        *zap.Logger
}

func newDispatcher(market string, publishers []port.EventPublisher, size int, timeout time.Duration, log *zap.Logger) *dispatcher {
	d := &dispatcher{
		market:     market,
		queue:      make(chan []domain.Trade, size),
		publishers: publishers,
		timeout:    timeout,
		done:       make(chan struct{}),
		log:        log.With(zap.String("market", market)),
	}
	go d.run()
	return d
}

// enqueue never blocks. A full queue drops the batch.
func (d *dispatcher) enqueue(trades []domain.Trade) bool {
	select {
	case d.queue <- trades:
		return true
	default:
		d.log.Warn("publish queue full, dropping trades",
			zap.Int("trades", len(trades)),
			zap.Uint64("first_seq", trades[0].Seq),
		)
		return false
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for batch := range d.queue {
		for _, p := range d.publishers {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := p.PublishTrades(ctx, d.market, batch); err != nil {
				d.log.Warn("failed to publish trades",
					zap.Int("trades", len(batch)),
					zap.Uint64("first_seq", batch[0].Seq),
					zap.Error(err),
				)
			}
			cancel()
		}
	}
}

// close publishes what is still queued and waits for the goroutine to exit.
// The actor feeding the queue must be stopped first.
func (d *dispatcher) close() {
	d.closeOnce.Do(func() { close(d.queue) })
	<-d.done
}
