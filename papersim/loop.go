package papersim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/yitech/klinedesk/metrics"
	"github.com/yitech/klinedesk/model/ticker"
)

// DefaultInterval is the time between ticks.
const DefaultInterval = 8 * time.Second

// ErrNoPrice is returned by Step when the price source failed and there is
// no previous price to fall back on. The tick is skipped.
var ErrNoPrice = errors.New("papersim: no price available")

var (
	minPrice    = decimal.RequireFromString("0.0001")
	noiseSpread = 0.004 // ±0.2%
)

// PriceSource supplies the last traded price.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (ticker.PriceTick, error)
}

// State is the loop's run state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Loop is the paper-trading simulator: on every tick it prices the
// configured symbol, classifies the move since the previous tick, sizes a
// simulated position and appends the decision to the ledger.
type Loop struct {
	src      PriceSource
	ledger   *Ledger
	settings func() Settings
	interval time.Duration
	noise    func() float64
	now      func() time.Time
	metrics  *metrics.Metrics
	onEntry  func(Entry)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	stepMu     sync.Mutex
	lastSymbol string
	lastPrice  decimal.Decimal
}

type LoopOption func(*Loop)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithNoise replaces the uniform [0,1) source used to perturb the fallback
// price.
func WithNoise(f func() float64) LoopOption {
	return func(l *Loop) { l.noise = f }
}

// WithClock replaces time.Now.
func WithClock(f func() time.Time) LoopOption {
	return func(l *Loop) { l.now = f }
}

// WithMetrics records ticks into m.
func WithMetrics(m *metrics.Metrics) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

// OnEntry registers a callback invoked after every recorded entry.
func OnEntry(f func(Entry)) LoopOption {
	return func(l *Loop) { l.onEntry = f }
}

// NewLoop creates an idle loop. settings is called at every tick so
// configuration changes apply without a restart.
func NewLoop(src PriceSource, ledger *Ledger, settings func() Settings, opts ...LoopOption) *Loop {
	l := &Loop{
		src:      src,
		ledger:   ledger,
		settings: settings,
		interval: DefaultInterval,
		noise:    rand.Float64,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start runs one tick immediately and then one per interval until Pause,
// Close or ctx cancellation. Starting a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.state, l.cancel, l.done = Running, cancel, done

	go l.run(ctx, done)
	log.Info().Dur("interval", l.interval).Msg("paper sim started")
}

// Pause stops the schedule and waits for an in-flight tick to finish. The
// ledger is left untouched.
func (l *Loop) Pause() {
	l.mu.Lock()
	if l.state != Running {
		l.mu.Unlock()
		return
	}
	cancel, done := l.cancel, l.done
	l.state, l.cancel, l.done = Idle, nil, nil
	l.mu.Unlock()

	cancel()
	<-done
	log.Info().Msg("paper sim paused")
}

// Close stops the loop.
func (l *Loop) Close() { l.Pause() }

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		// ctx ended without Pause (parent cancelled).
		l.mu.Lock()
		if l.done == done {
			l.state, l.cancel, l.done = Idle, nil, nil
		}
		l.mu.Unlock()
	}()

	t := time.NewTicker(l.interval)
	defer t.Stop()

	for {
		if _, err := l.Step(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("paper tick skipped")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Step runs a single tick and returns the recorded entry.
func (l *Loop) Step(ctx context.Context) (Entry, error) {
	l.stepMu.Lock()
	defer l.stepMu.Unlock()

	s, _ := l.settings().Normalize()
	if s.Symbol != l.lastSymbol {
		// A new symbol starts over: its first tick has no previous price.
		l.lastSymbol, l.lastPrice = s.Symbol, decimal.Zero
	}

	price, fallback, err := l.price(ctx, s.Symbol)
	if err != nil {
		l.metrics.PaperSkipped()
		return Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	prev := l.lastPrice
	if !prev.IsPositive() {
		prev = price
	}
	delta := DeltaPct(prev, price)
	sig, conf := Classify(delta,
		decimal.NewFromFloat(s.BuyThresholdPct),
		decimal.NewFromFloat(s.HighConfidencePct))

	size := decimal.Zero
	if sig != Hold {
		size = Size(s, conf, price)
	}

	e := Entry{
		ID:            "paper-" + uuid.NewString(),
		Timestamp:     l.now(),
		Symbol:        s.Symbol,
		Signal:        sig,
		Confidence:    conf,
		Approved:      sig != Hold && size.IsPositive(),
		Size:          size,
		Price:         price,
		DeltaPct:      delta,
		UnrealizedPnL: PnL(sig, prev, price, size),
		Mode:          s.Mode,
		Leverage:      int(s.Leverage),
		Source:        Source,
		PriceFallback: fallback,
	}
	l.lastPrice = price

	if err := l.ledger.Append(ctx, e); err != nil {
		log.Warn().Err(err).Str("id", e.ID).Msg("ledger write-through failed")
	}
	l.metrics.PaperTick(string(sig), fallback)
	if l.onEntry != nil {
		l.onEntry(e)
	}
	return e, nil
}

// price fetches the last price, falling back to the previous price
// perturbed by up to ±0.2% when the source fails.
func (l *Loop) price(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	tick, err := l.src.LastPrice(ctx, symbol)
	if err == nil && tick.Price > 0 {
		return decimal.NewFromFloat(tick.Price), false, nil
	}
	if err == nil {
		err = fmt.Errorf("non-positive price %v", tick.Price)
	}
	if !l.lastPrice.IsPositive() {
		return decimal.Zero, false, fmt.Errorf("%w: %w", ErrNoPrice, err)
	}

	factor := decimal.NewFromFloat(1 + (l.noise()-0.5)*noiseSpread)
	log.Debug().Err(err).Str("symbol", symbol).Msg("price fetch failed, perturbing previous price")
	return decimal.Max(minPrice, l.lastPrice.Mul(factor)), true, nil
}
