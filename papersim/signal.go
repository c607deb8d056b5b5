package papersim

import "github.com/shopspring/decimal"

// Signal is the simulated trade direction.
type Signal string

const (
	Buy  Signal = "BUY"
	Sell Signal = "SELL"
	Hold Signal = "HOLD"
)

func (s Signal) Valid() bool { return s == Buy || s == Sell || s == Hold }

// Confidence grades a signal by the size of the move behind it.
type Confidence string

const (
	High Confidence = "HIGH"
	Low  Confidence = "LOW"
)

func (c Confidence) Valid() bool { return c == High || c == Low }

var hundred = decimal.NewFromInt(100)

// DeltaPct is the percentage move from prev to price.
func DeltaPct(prev, price decimal.Decimal) decimal.Decimal {
	if !prev.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(prev).Div(prev).Mul(hundred)
}

// Classify maps a percentage move onto a signal and confidence: BUY at or
// above +buyPct, SELL at or below -buyPct, HOLD otherwise; HIGH when the
// absolute move reaches highPct.
func Classify(deltaPct, buyPct, highPct decimal.Decimal) (Signal, Confidence) {
	sig := Hold
	switch {
	case deltaPct.GreaterThanOrEqual(buyPct):
		sig = Buy
	case deltaPct.LessThanOrEqual(buyPct.Neg()):
		sig = Sell
	}

	conf := Low
	if deltaPct.Abs().GreaterThanOrEqual(highPct) {
		conf = High
	}
	return sig, conf
}
