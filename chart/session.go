// Package chart owns everything one chart shows: the candle series, the
// viewport over it, the live subscription feeding it and the 24h ticker.
package chart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/buffer"
	"github.com/yitech/klinedesk/indicator"
	"github.com/yitech/klinedesk/metrics"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/model/ticker"
	"github.com/yitech/klinedesk/viewport"
)

// Status is the load state of the current key.
type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "idle"
}

// EventKind tells a consumer what changed.
type EventKind int

const (
	Loaded EventKind = iota
	Updated
	Warning
	Failure
	TickerUpdated
)

// Event notifies the render loop that the session changed. Consumers call
// Snapshot to read the new state.
type Event struct {
	Kind EventKind
	Key  Key
	Err  error
}

// Options tune a Session. Zero values use the defaults.
type Options struct {
	HistoryLimit  int
	Retries       int
	RetryBackoff  time.Duration
	TickerRefresh time.Duration
	EventBuffer   int
	Metrics       *metrics.Metrics
}

func (o *Options) defaults() {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = buffer.DefaultLimit
	}
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.TickerRefresh <= 0 {
		o.TickerRefresh = 12 * time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
}

// Session is one chart: a bounded series kept live by a feed subscription,
// its viewport and cached indicators. Every asynchronous callback carries
// the generation it was started under and is dropped once a newer Open has
// superseded it.
type Session struct {
	feeds adapter.Registry
	opts  Options

	mu       sync.Mutex
	key      Key
	gen      uint64
	status   Status
	warning  error
	failure  error
	series   *buffer.Series
	vp       *viewport.Viewport
	set      *indicator.Set
	dirty    bool
	stats    *ticker.Stats
	token    adapter.Token
	cancel   context.CancelFunc
	closed   bool
	events   chan Event
	inflight sync.WaitGroup
}

func NewSession(feeds adapter.Registry, opts Options) *Session {
	opts.defaults()
	return &Session{
		feeds:  feeds,
		opts:   opts,
		series: buffer.New(opts.HistoryLimit),
		vp:     viewport.New(opts.HistoryLimit),
		events: make(chan Event, opts.EventBuffer),
	}
}

// Events is closed by Close.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) Key() Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Open switches the session to key. Previous subscriptions are torn down
// immediately; history is then fetched in the background and the live
// stream started once the fetch resolves. Switching to a different key
// discards the current series at once; reopening the same key keeps it
// until fresh history replaces it.
func (s *Session) Open(ctx context.Context, key Key) error {
	key = key.Normalize()
	feed, err := s.feeds.Get(key.Exchange)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("chart: session closed")
	}
	s.teardownLocked()
	s.gen++
	gen := s.gen
	fresh := key != s.key
	if fresh {
		s.series.Reset()
		s.vp.Reset()
		s.set, s.dirty = nil, true
		s.stats = nil
	}
	s.key = key
	s.status = Loading
	s.warning, s.failure = nil, nil
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.inflight.Add(2)
	s.mu.Unlock()

	log.Info().Str("key", key.String()).Bool("fresh", fresh).Msg("opening chart")

	go s.load(runCtx, gen, key, feed, fresh)
	go s.pollTicker(runCtx, gen, key, feed)
	return nil
}

// Refresh reloads the current key, keeping the visible data on failure.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Open(ctx, s.Key())
}

// Close stops every subscription and waits for background work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.gen++
	s.closed = true
	s.mu.Unlock()

	s.inflight.Wait()

	s.mu.Lock()
	close(s.events)
	s.mu.Unlock()
}

func (s *Session) teardownLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.token != nil {
		s.token.Unsubscribe()
		s.token = nil
	}
}

// current reports whether gen is still the live generation. Callers hold mu.
func (s *Session) current(gen uint64) bool {
	if gen != s.gen || s.closed {
		s.opts.Metrics.StaleCallback()
		return false
	}
	return true
}

// publish never blocks; a full channel drops the event since the consumer
// re-reads the whole state on the next one anyway. Callers hold mu.
func (s *Session) publish(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.opts.Metrics.EventDropped()
	}
}

func (s *Session) load(ctx context.Context, gen uint64, key Key, feed adapter.Feed, fresh bool) {
	defer s.inflight.Done()

	history, err := s.fetchHistory(ctx, gen, key, feed)
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	keepStream := true
	switch {
	case err == nil:
		s.series.Replace(history)
		s.vp.Clamp(s.series.Len())
		s.dirty = true
		s.status = Ready
		s.warning, s.failure = nil, nil
		s.publish(Event{Kind: Loaded, Key: key})
	case fresh || s.series.Len() == 0:
		s.status = Failed
		s.failure = err
		keepStream = false
		s.publish(Event{Kind: Failure, Key: key, Err: err})
	default:
		s.status = Ready
		s.warning = err
		s.publish(Event{Kind: Warning, Key: key, Err: err})
	}
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("key", key.String()).Msg("history load failed")
	}
	if keepStream {
		s.subscribe(ctx, gen, key, feed)
	}
}

func (s *Session) fetchHistory(ctx context.Context, gen uint64, key Key, feed adapter.Feed) ([]candle.Candle, error) {
	var last error
	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		start := time.Now()
		cs, err := feed.FetchHistory(ctx, key.Symbol, key.Interval, s.opts.HistoryLimit)
		s.opts.Metrics.ObserveHistory(feed.Name(), time.Since(start), err)
		if err == nil {
			return cs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		last = err
		s.warn(gen, key, fmt.Errorf("history attempt %d/%d: %w", attempt, s.opts.Retries, err))

		if attempt < s.opts.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.RetryBackoff * time.Duration(attempt)):
			}
		}
	}
	return nil, &LoadError{Key: key, Attempts: s.opts.Retries, Err: last}
}

func (s *Session) subscribe(ctx context.Context, gen uint64, key Key, feed adapter.Feed) {
	tok, err := feed.Subscribe(ctx, key.Symbol, key.Interval,
		func(c candle.Candle) { s.onCandle(gen, c) },
		func(err error) { s.onStreamError(gen, key, err) })
	if err != nil {
		s.warn(gen, key, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		tok.Unsubscribe()
		return
	}
	s.token = tok
}

func (s *Session) onCandle(gen uint64, c candle.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return
	}

	res := s.series.Merge(c)
	s.opts.Metrics.Merged(res.String())
	if res == buffer.Stale {
		return
	}
	if res == buffer.Appended {
		s.vp.OnAppend(s.series.Len())
	}
	s.dirty = true
	if s.status == Failed {
		s.status, s.failure = Ready, nil
	}
	s.publish(Event{Kind: Updated, Key: s.key})
}

func (s *Session) onStreamError(gen uint64, key Key, err error) {
	s.opts.Metrics.StreamError(key.Exchange)
	s.warn(gen, key, err)
}

func (s *Session) warn(gen uint64, key Key, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return
	}
	s.warning = err
	s.publish(Event{Kind: Warning, Key: key, Err: err})
	log.Warn().Err(err).Str("key", key.String()).Msg("chart warning")
}

func (s *Session) pollTicker(ctx context.Context, gen uint64, key Key, feed adapter.Feed) {
	defer s.inflight.Done()

	t := time.NewTicker(s.opts.TickerRefresh)
	defer t.Stop()
	for {
		stats, err := feed.Ticker24h(ctx, key.Symbol)
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		if s.current(gen) {
			if err != nil {
				s.stats = nil
				log.Debug().Err(err).Str("key", key.String()).Msg("ticker refresh failed")
			} else {
				s.stats = &stats
			}
			s.publish(Event{Kind: TickerUpdated, Key: key, Err: err})
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// indicatorsLocked recomputes the indicator set when the series changed.
func (s *Session) indicatorsLocked() *indicator.Set {
	if s.dirty || s.set == nil {
		s.set = indicator.Compute(s.series.Candles())
		s.dirty = false
	}
	return s.set
}

// View is what Do hands to its callback. It is only valid inside the
// callback.
type View struct {
	Viewport   *viewport.Viewport
	Candles    []candle.Candle
	Indicators *indicator.Set
}

// Do runs fn with exclusive access to the viewport, for pointer and wheel
// handling.
func (s *Session) Do(fn func(v View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(View{
		Viewport:   s.vp,
		Candles:    s.series.Candles(),
		Indicators: s.indicatorsLocked(),
	})
}
