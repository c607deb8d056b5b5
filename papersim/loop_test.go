package papersim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/klinedesk/model/ticker"
	"github.com/yitech/klinedesk/store"
)

// scripted returns prices in order; a zero price is a fetch failure.
type scripted struct {
	mu     sync.Mutex
	prices []float64
	calls  int
}

func (s *scripted) LastPrice(_ context.Context, symbol string) (ticker.PriceTick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.prices)-1)
	s.calls++
	if s.prices[i] == 0 {
		return ticker.PriceTick{}, errors.New("unreachable")
	}
	return ticker.PriceTick{Symbol: symbol, Price: s.prices[i], Timestamp: time.UnixMilli(1)}, nil
}

func newLoop(src PriceSource, s Settings, opts ...LoopOption) (*Loop, *Ledger) {
	ledger := NewLedger(store.NewMemory(), 0, nil)
	opts = append([]LoopOption{WithNoise(func() float64 { return 0.5 })}, opts...)
	return NewLoop(src, ledger, func() Settings { return s }, opts...), ledger
}

func TestStepSequence(t *testing.T) {
	ctx := context.Background()
	l, ledger := newLoop(&scripted{prices: []float64{100, 100.2, 99.8}}, DefaultSettings())

	e1, err := l.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Hold, e1.Signal)
	assert.False(t, e1.Approved)
	assert.True(t, e1.Size.IsZero())
	assert.True(t, e1.UnrealizedPnL.IsZero())

	e2, err := l.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Buy, e2.Signal)
	assert.Equal(t, High, e2.Confidence)
	assert.True(t, e2.Approved)
	assert.True(t, e2.Size.Equal(d("0.01")))
	assert.True(t, e2.UnrealizedPnL.Equal(d("0.002")), e2.UnrealizedPnL.String())

	e3, err := l.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Sell, e3.Signal)
	assert.Equal(t, High, e3.Confidence)
	assert.True(t, e3.UnrealizedPnL.Equal(d("0.004")), e3.UnrealizedPnL.String())

	assert.Equal(t, 3, ledger.Len())
	for _, e := range ledger.Entries() {
		assert.Equal(t, Source, e.Source)
		assert.Equal(t, "BTCUSDT", e.Symbol)
		assert.Contains(t, e.ID, "paper-")
	}
}

func TestStepMarginPct(t *testing.T) {
	s := DefaultSettings()
	s.Mode = MarginPct
	l, _ := newLoop(&scripted{prices: []float64{100, 100.3}}, s)

	_, err := l.Step(context.Background())
	require.NoError(t, err)
	e, err := l.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Buy, e.Signal)
	assert.Equal(t, MarginPct, e.Mode)
	assert.Equal(t, 10, e.Leverage)
	// 200 * 10% * 10x / 100.3
	assert.True(t, e.Size.Round(6).Equal(d("1.994018")), e.Size.String())
}

func TestStepFallbackPrice(t *testing.T) {
	l, ledger := newLoop(&scripted{prices: []float64{100, 0}}, DefaultSettings())

	_, err := l.Step(context.Background())
	require.NoError(t, err)
	e, err := l.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, e.PriceFallback)
	assert.True(t, e.Price.Equal(d("100")))
	assert.Equal(t, Hold, e.Signal)
	assert.Equal(t, 2, ledger.Len())
}

func TestStepNoPriceSkips(t *testing.T) {
	l, ledger := newLoop(&scripted{prices: []float64{0}}, DefaultSettings())

	_, err := l.Step(context.Background())
	require.ErrorIs(t, err, ErrNoPrice)
	assert.Zero(t, ledger.Len())
}

func TestStepCancelledAppendsNothing(t *testing.T) {
	l, ledger := newLoop(&scripted{prices: []float64{100}}, DefaultSettings())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Step(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ledger.Len())
}

func TestStartIsIdempotentAndPauseStops(t *testing.T) {
	var mu sync.Mutex
	var seen int
	l, ledger := newLoop(&scripted{prices: []float64{100}}, DefaultSettings(),
		WithInterval(time.Hour),
		OnEntry(func(Entry) { mu.Lock(); seen++; mu.Unlock() }))

	l.Start(context.Background())
	l.Start(context.Background())
	assert.Equal(t, Running, l.State())

	require.Eventually(t, func() bool { return ledger.Len() == 1 }, time.Second, 5*time.Millisecond)

	l.Pause()
	assert.Equal(t, Idle, l.State())
	assert.Equal(t, 1, ledger.Len())
	mu.Lock()
	assert.Equal(t, 1, seen)
	mu.Unlock()

	l.Pause()
	l.Close()
}

func TestParentCancelReturnsToIdle(t *testing.T) {
	l, _ := newLoop(&scripted{prices: []float64{100}}, DefaultSettings(), WithInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	cancel()

	require.Eventually(t, func() bool { return l.State() == Idle }, time.Second, 5*time.Millisecond)
}

func TestSymbolChangeStartsOver(t *testing.T) {
	ctx := context.Background()
	s := DefaultSettings()
	s.Symbol = "BTCUSDT"
	ledger := NewLedger(store.NewMemory(), 0, nil)
	l := NewLoop(&scripted{prices: []float64{60000, 3000, 0}}, ledger,
		func() Settings { return s }, WithNoise(func() float64 { return 0.5 }))

	_, err := l.Step(ctx)
	require.NoError(t, err)

	s.Symbol = "ETHUSDT"
	e, err := l.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", e.Symbol)
	assert.Equal(t, Hold, e.Signal)
	assert.True(t, e.DeltaPct.IsZero())
	assert.True(t, e.UnrealizedPnL.IsZero())

	// The fallback never borrows another symbol's price.
	s.Symbol = "SOLUSDT"
	_, err = l.Step(ctx)
	require.ErrorIs(t, err, ErrNoPrice)
	assert.Equal(t, 2, ledger.Len())
}
