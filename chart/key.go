package chart

import (
	"fmt"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

// DefaultInterval is used when a key carries an unknown interval.
const DefaultInterval = "1m"

// Key identifies what a session is charting.
type Key struct {
	Exchange string
	Symbol   string
	Interval string
}

// Normalize maps every field onto a supported value.
func (k Key) Normalize() Key {
	k.Exchange = adapter.NormalizeExchange(k.Exchange)
	k.Symbol = adapter.NormalizeSymbol(k.Symbol)
	if !candle.ValidInterval(k.Interval) {
		k.Interval = DefaultInterval
	}
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s@%s", k.Exchange, k.Symbol, k.Interval)
}

// LoadError is reported when history could not be fetched after every
// attempt.
type LoadError struct {
	Key      Key
	Attempts int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("chart: load %s failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
