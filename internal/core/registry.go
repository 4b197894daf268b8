package core

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/olyamironova/spot-exchange/internal/domain"
	"github.com/olyamironova/spot-exchange/internal/port"
)

const defaultInboxSize = 256

// Registry creates and looks up the actor of each market. When publishers
// are configured each market also gets a dispatcher that outlives resets,
// so trade sequence numbers keep increasing across them.
type Registry struct {
	mu             sync.Mutex
	actors         map[string]*MarketActor
	dispatchers    map[string]*dispatcher
	closed         bool
	inboxSize      int
	publishers     []port.EventPublisher
	publishQueue   int
	publishTimeout time.Duration
	now            func() time.Time
	log            *zap.Logger
}

type RegistryOption func(*Registry)

func WithInboxSize(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.inboxSize = n
		}
	}
}

// WithTradePublisher adds a sink for executed trades. Each market's trades
// reach it in execution order, off the placement path.
func WithTradePublisher(p port.EventPublisher) RegistryOption {
	return func(r *Registry) { r.publishers = append(r.publishers, p) }
}

// WithPublishQueue bounds the number of trade batches waiting to be
// published per market. Batches beyond it are dropped.
func WithPublishQueue(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.publishQueue = n
		}
	}
}

// WithPublishTimeout bounds a single PublishTrades call.
func WithPublishTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.publishTimeout = d
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithRegistryLogger(log *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		actors:         make(map[string]*MarketActor),
		dispatchers:    make(map[string]*dispatcher),
		inboxSize:      defaultInboxSize,
		publishQueue:   defaultPublishQueue,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Actor returns the running actor of m, spawning it on first reference.
func (r *Registry) Actor(m domain.Market) (*MarketActor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, domain.ErrRegistryClosed
	}
	symbol := m.String()
	a, ok := r.actors[symbol]
	if !ok {
		a = newMarketActor(m, r.inboxSize, 0, r.dispatcherFor(symbol), r.now, r.log)
		r.actors[symbol] = a
		r.log.Info("market actor spawned", zap.String("market", symbol))
	}
	return a, nil
}

// dispatcherFor returns the market's dispatcher, or nil without publishers.
// Callers hold r.mu.
func (r *Registry) dispatcherFor(symbol string) *dispatcher {
	if len(r.publishers) == 0 {
		return nil
	}
	d, ok := r.dispatchers[symbol]
	if !ok {
		d = newDispatcher(symbol, r.publishers, r.publishQueue, r.publishTimeout, r.log)
		r.dispatchers[symbol] = d
	}
	return d
}

// Reset stops every actor and replaces it with one holding an empty book.
// Commands in flight at reset time may get no reply.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	for symbol, a := range r.actors {
		a.Stop()
		r.actors[symbol] = newMarketActor(a.Market(), r.inboxSize, a.tradeSeq, r.dispatcherFor(symbol), r.now, r.log)
	}
	r.log.Info("market registry reset", zap.Int("markets", len(r.actors)))
}

// Shutdown stops every actor, then publishes the trades still queued. Later
// lookups fail with ErrRegistryClosed.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for symbol, a := range r.actors {
		a.Stop()
		delete(r.actors, symbol)
	}
	for symbol, d := range r.dispatchers {
		d.close()
		delete(r.dispatchers, symbol)
	}
	r.log.Info("market registry shut down")
}

// Markets lists the symbols with a running actor.
func (r *Registry) Markets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]string, 0, len(r.actors))
	for symbol := range r.actors {
		res = append(res, symbol)
	}
	sort.Strings(res)
	return res
}
