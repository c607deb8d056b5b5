package adapter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/model/ticker"
)

// DefaultSymbol is used when a requested symbol normalizes to nothing.
const DefaultSymbol = "BTCUSDT"

// CandleHandler receives every normalized candle a subscription produces,
// both in-progress updates and closed candles.
type CandleHandler func(c candle.Candle)

// ErrorHandler receives non-fatal stream failures. The subscription keeps
// reconnecting after reporting.
type ErrorHandler func(err error)

// Token cancels a live subscription. Unsubscribe is best-effort and safe to
// call more than once.
type Token interface {
	Unsubscribe()
}

// Feed is the contract every market-data source implements: an exchange
// adapter talking REST/WebSocket directly, or the relay client.
type Feed interface {
	// Name is the exchange identifier stamped on produced candles.
	Name() string

	// FetchHistory returns up to limit of the most recent candles in
	// ascending open-time order. Fails with *FeedError.
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error)

	// Subscribe starts pushing candle updates for symbol/interval until the
	// token is cancelled or ctx is done.
	Subscribe(ctx context.Context, symbol, interval string, onCandle CandleHandler, onErr ErrorHandler) (Token, error)

	// Ticker24h returns the rolling 24h statistics. Fails with *PriceFetchError.
	Ticker24h(ctx context.Context, symbol string) (ticker.Stats, error)

	// LastPrice returns the latest traded price. Fails with *PriceFetchError.
	LastPrice(ctx context.Context, symbol string) (ticker.PriceTick, error)

	Close() error
}

// Registry maps exchange names to feeds.
type Registry map[string]Feed

// Get returns the feed for exchange after normalizing the name.
func (r Registry) Get(exchange string) (Feed, error) {
	f, ok := r[NormalizeExchange(exchange)]
	if !ok {
		return nil, fmt.Errorf("adapter: no feed registered for %q", exchange)
	}
	return f, nil
}

// Names returns the registered exchange names, sorted.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every feed and returns the first error.
func (r Registry) Close() error {
	var first error
	for _, f := range r {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NormalizeExchange maps any exchange selector onto a supported exchange;
// anything that is not okx falls back to binance.
func NormalizeExchange(exchange string) string {
	if strings.EqualFold(strings.TrimSpace(exchange), "okx") {
		return "okx"
	}
	return "binance"
}

// NormalizeSymbol upper-cases symbol and strips everything but letters and
// digits, falling back to DefaultSymbol.
func NormalizeSymbol(symbol string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(symbol) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultSymbol
	}
	return b.String()
}
