package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/engine"
)

// errUndelivered marks a command that never reached the actor's inbox, so
// the book is known to be untouched.
var errUndelivered = errors.New("command not delivered")

type commandKind int

const (
	commandPlace commandKind = iota
	commandCancel
	commandSnapshot
)

type command struct {
	kind    commandKind
	order   *domain.Order
	orderID string
	userID  string
	reply   chan reply
}

type reply struct {
	trades    []domain.Trade
	remaining decimal.Decimal
	refund    domain.Refund
	snapshot  *domain.BookSnapshot
	err       error
}

// MarketActor owns the order book of one market. A single goroutine
// processes its commands one at a time in arrival order.
type MarketActor struct {
	market domain.Market
	book   *engine.OrderBook
	inbox  chan command
	quit   chan struct{}
	done   chan struct{}
	stop   sync.Once
	seq    uint64

	// tradeSeq is the Seq of the last trade executed in this market.
	tradeSeq uint64
	dispatch *dispatcher
	now      func() time.Time
	log      *zap.Logger
}

func newMarketActor(m domain.Market, inboxSize int, tradeSeq uint64, dispatch *dispatcher, now func() time.Time, log *zap.Logger) *MarketActor {
	a := &MarketActor{
		market:   m,
		book:     engine.NewOrderBook(),
		inbox:    make(chan command, inboxSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		tradeSeq: tradeSeq,
		dispatch: dispatch,
		now:      now,
		log:      log.With(zap.String("market", m.String())),
	}
	go a.run()
	return a
}

func (a *MarketActor) Market() domain.Market {
	return a.market
}

func (a *MarketActor) run() {
	defer close(a.done)
	a.log.Debug("market actor started")
	for {
		select {
		case <-a.quit:
			a.log.Debug("market actor stopped", zap.Int("pending", len(a.inbox)))
			return
		default:
		}
		select {
		case <-a.quit:
			a.log.Debug("market actor stopped", zap.Int("pending", len(a.inbox)))
			return
		case cmd := <-a.inbox:
			cmd.reply <- a.handle(cmd)
		}
	}
}

func (a *MarketActor) handle(cmd command) reply {
	switch cmd.kind {
	case commandPlace:
		o := cmd.order
		if err := o.Validate(); err != nil {
			return reply{err: err}
		}
		a.seq++
		o.Seq = a.seq
		trades := engine.Match(a.book, a.market.String(), o, a.now())
		for i := range trades {
			a.tradeSeq++
			trades[i].Seq = a.tradeSeq
		}
		if len(trades) > 0 && a.dispatch != nil {
			a.dispatch.enqueue(append([]domain.Trade(nil), trades...))
		}
		return reply{trades: trades, remaining: o.Volume}
	case commandCancel:
		o, err := a.book.Remove(cmd.orderID, cmd.userID)
		if err != nil {
			return reply{err: err}
		}
		currency, amount := o.Locked(a.market)
		return reply{refund: domain.Refund{Currency: currency, Amount: amount}}
	case commandSnapshot:
		return reply{snapshot: &domain.BookSnapshot{
			Market: a.market.String(),
			Asks:   a.book.Aggregate(domain.Ask),
			Bids:   a.book.Aggregate(domain.Bid),
		}}
	default:
		return reply{err: fmt.Errorf("unknown command %d", cmd.kind)}
	}
}

// send enqueues cmd. It gives up when ctx ends or the actor stops; in both
// cases the command was not delivered.
func (a *MarketActor) send(ctx context.Context, cmd command) error {
	select {
	case <-a.quit:
		return fmt.Errorf("%w: %w", errUndelivered, domain.ErrActorStopped)
	default:
	}
	select {
	case a.inbox <- cmd:
		return nil
	case <-a.quit:
		return fmt.Errorf("%w: %w", errUndelivered, domain.ErrActorStopped)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errUndelivered, ctx.Err())
	}
}

func (a *MarketActor) await(ctx context.Context, cmd command) (reply, error) {
	select {
	case r := <-cmd.reply:
		return r, r.err
	case <-a.done:
		select {
		case r := <-cmd.reply:
			return r, r.err
		default:
			return reply{}, domain.ErrActorStopped
		}
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (a *MarketActor) call(ctx, awaitCtx context.Context, cmd command) (reply, error) {
	cmd.reply = make(chan reply, 1)
	if err := a.send(ctx, cmd); err != nil {
		return reply{}, err
	}
	return a.await(awaitCtx, cmd)
}

// Place hands o to the actor and returns the trades it produced and the
// order's remaining volume. The actor takes ownership of o. Once delivered,
// the reply is awaited even if ctx ends because the match is applied anyway.
func (a *MarketActor) Place(ctx context.Context, o *domain.Order) ([]domain.Trade, decimal.Decimal, error) {
	r, err := a.call(ctx, context.WithoutCancel(ctx), command{kind: commandPlace, order: o})
	return r.trades, r.remaining, err
}

// Cancel removes the user's order and returns the funds it had locked.
func (a *MarketActor) Cancel(ctx context.Context, orderID, userID string) (domain.Refund, error) {
	r, err := a.call(ctx, context.WithoutCancel(ctx), command{kind: commandCancel, orderID: orderID, userID: userID})
	return r.refund, err
}

func (a *MarketActor) Snapshot(ctx context.Context) (*domain.BookSnapshot, error) {
	r, err := a.call(ctx, ctx, command{kind: commandSnapshot})
	return r.snapshot, err
}

// Stop tears the actor down and waits for its goroutine to exit. Queued
// commands are dropped without a reply.
func (a *MarketActor) Stop() {
	a.stop.Do(func() { close(a.quit) })
	<-a.done
}
