package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/metrics"
	"github.com/yitech/klinedesk/model/candle"
)

// Hub multiplexes one upstream exchange subscription per
// "exchange:symbol:interval" key onto any number of downstream handlers.
// Upstream subscriptions are created lazily on the first handler and torn
// down when the last one leaves.
type Hub struct {
	feeds   adapter.Registry
	metrics *metrics.Metrics
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	states map[string]*keyState
}

// keyState holds runtime data for one key.
type keyState struct {
	mu       sync.Mutex
	upstream adapter.Token

	// Registered downstream subscribers.
	handlers map[uint64]subscriber
	nextID   uint64
}

type subscriber struct {
	onCandle adapter.CandleHandler
	onErr    adapter.ErrorHandler
}

// hubToken cancels a single handler registration.
type hubToken struct {
	hub  *Hub
	key  string
	id   uint64
	once sync.Once
}

func (t *hubToken) Unsubscribe() {
	t.once.Do(func() { t.hub.remove(t.key, t.id) })
}

func NewHub(feeds adapter.Registry, m *metrics.Metrics) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		feeds:   feeds,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		states:  make(map[string]*keyState),
	}
}

func hubKey(exchange, symbol, interval string) string {
	return exchange + ":" + symbol + ":" + interval
}

// Subscribe registers onCandle for candle updates on exchange/symbol/interval.
// Upstream stream errors are passed to onErr, which may be nil.
func (h *Hub) Subscribe(exchange, symbol, interval string, onCandle adapter.CandleHandler, onErr adapter.ErrorHandler) (adapter.Token, error) {
	exchange = adapter.NormalizeExchange(exchange)
	symbol = adapter.NormalizeSymbol(symbol)
	if !candle.ValidInterval(interval) {
		return nil, fmt.Errorf("relay: unsupported interval %q", interval)
	}
	key := hubKey(exchange, symbol, interval)

	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.states[key]
	if !ok {
		var err error
		if state, err = h.start(key, exchange, symbol, interval); err != nil {
			return nil, err
		}
		h.states[key] = state
	}

	state.mu.Lock()
	id := state.nextID
	state.nextID++
	state.handlers[id] = subscriber{onCandle: onCandle, onErr: onErr}
	state.mu.Unlock()

	return &hubToken{hub: h, key: key, id: id}, nil
}

// Keys lists the keys with a live upstream subscription.
func (h *Hub) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.states))
	for k := range h.states {
		out = append(out, k)
	}
	return out
}

// Close cancels every upstream subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, state := range h.states {
		state.upstream.Unsubscribe()
		delete(h.states, key)
	}
	h.cancel()
}

// ── internal ─────────────────────────────────────────────────────────────────

// start opens the upstream subscription for key. Called under h.mu.
func (h *Hub) start(key, exchange, symbol, interval string) (*keyState, error) {
	feed, err := h.feeds.Get(exchange)
	if err != nil {
		return nil, err
	}
	state := &keyState{handlers: make(map[uint64]subscriber)}

	tok, err := feed.Subscribe(h.ctx, symbol, interval,
		func(c candle.Candle) { broadcast(state, c) },
		func(err error) {
			h.metrics.StreamError(exchange)
			log.Warn().Err(err).Str("key", key).Msg("upstream stream error")
			broadcastErr(state, err)
		})
	if err != nil {
		return nil, fmt.Errorf("relay [%s]: %w", key, err)
	}
	state.upstream = tok
	log.Info().Str("key", key).Msg("upstream subscribed")
	return state, nil
}

func (h *Hub) remove(key string, id uint64) {
	h.mu.Lock()
	state, ok := h.states[key]
	if !ok {
		h.mu.Unlock()
		return
	}
	state.mu.Lock()
	delete(state.handlers, id)
	idle := len(state.handlers) == 0
	state.mu.Unlock()
	if idle {
		delete(h.states, key)
	}
	h.mu.Unlock()

	if idle {
		state.upstream.Unsubscribe()
		log.Info().Str("key", key).Msg("upstream released")
	}
}

// broadcast fans c out without holding the lock while calling handlers.
func broadcast(state *keyState, c candle.Candle) {
	state.mu.Lock()
	subs := snapshotHandlers(state)
	state.mu.Unlock()

	for _, sub := range subs {
		sub.onCandle(c)
	}
}

func broadcastErr(state *keyState, err error) {
	state.mu.Lock()
	subs := snapshotHandlers(state)
	state.mu.Unlock()

	for _, sub := range subs {
		if sub.onErr != nil {
			sub.onErr(err)
		}
	}
}

// snapshotHandlers returns a copy of the subscriber set (called under lock).
func snapshotHandlers(state *keyState) []subscriber {
	subs := make([]subscriber, 0, len(state.handlers))
	for _, sub := range state.handlers {
		subs = append(subs, sub)
	}
	return subs
}
