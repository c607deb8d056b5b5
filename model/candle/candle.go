package candle

import (
	"math"
	"slices"
)

// Candle is the exchange-agnostic representation of an OHLCV candlestick.
// Adapters normalize every payload into this shape before it reaches the
// buffer, so nothing downstream knows which exchange produced it.
type Candle struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`

	OpenTime int64   `json:"open_time"` // Unix ms
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`

	QuoteVolume         float64 `json:"quote_volume"`
	TradeCount          int64   `json:"trade_count"`
	TakerBuyBaseVolume  float64 `json:"taker_buy_base_volume"`
	TakerBuyQuoteVolume float64 `json:"taker_buy_quote_volume"`

	CloseTime int64 `json:"close_time"` // Unix ms
	IsClosed  bool  `json:"is_closed"`
}

// Valid reports whether c can be merged into a series.
func (c Candle) Valid() bool {
	if c.OpenTime <= 0 {
		return false
	}
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Sanitize widens High and Low so they bracket Open and Close.
// Some exchanges briefly publish in-progress candles where this does not hold.
func (c Candle) Sanitize() Candle {
	c.High = max(c.High, c.Open, c.Close)
	c.Low = min(c.Low, c.Open, c.Close)
	return c
}

// Bullish reports whether the candle closed at or above its open.
func (c Candle) Bullish() bool { return c.Close >= c.Open }

// Typical returns (high + low + close) / 3.
func (c Candle) Typical() float64 { return (c.High + c.Low + c.Close) / 3 }

// Normalize drops invalid candles, sanitizes the rest, sorts them by open
// time and keeps the last occurrence of each open time.
func Normalize(cs []Candle) []Candle {
	out := make([]Candle, 0, len(cs))
	for _, c := range cs {
		if c.Valid() {
			out = append(out, c.Sanitize())
		}
	}
	slices.SortStableFunc(out, func(a, b Candle) int {
		switch {
		case a.OpenTime < b.OpenTime:
			return -1
		case a.OpenTime > b.OpenTime:
			return 1
		}
		return 0
	})

	deduped := out[:0]
	for _, c := range out {
		if n := len(deduped); n > 0 && deduped[n-1].OpenTime == c.OpenTime {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}
	return deduped
}

// Closes extracts the close prices of cs.
func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}
