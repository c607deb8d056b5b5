package papersim

import (
	"github.com/shopspring/decimal"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/config"
)

// Mode selects how position size is derived.
type Mode string

const (
	// Contracts uses a fixed contract amount per confidence tier.
	Contracts Mode = "contracts"
	// MarginPct commits a percentage of margin, levered, converted to
	// contracts at the current price.
	MarginPct Mode = "margin_pct"
)

// Settings is the trade configuration the simulator reads at every tick.
type Settings struct {
	Symbol string
	Mode   Mode

	HighAmount float64
	LowAmount  float64

	HighMarginPct float64
	LowMarginPct  float64
	Margin        float64
	Leverage      float64

	BuyThresholdPct   float64
	HighConfidencePct float64
}

// DefaultSettings are used until trade settings arrive from configuration.
func DefaultSettings() Settings {
	return Settings{
		Symbol:            adapter.DefaultSymbol,
		Mode:              Contracts,
		HighAmount:        0.01,
		LowAmount:         0.005,
		HighMarginPct:     10,
		LowMarginPct:      5,
		Margin:            200,
		Leverage:          10,
		BuyThresholdPct:   0.05,
		HighConfidencePct: 0.2,
	}
}

// FromConfig converts loaded configuration into Settings.
func FromConfig(p config.Paper) Settings {
	return Settings{
		Symbol:            p.Symbol,
		Mode:              Mode(p.Mode),
		HighAmount:        p.HighAmount,
		LowAmount:         p.LowAmount,
		HighMarginPct:     p.HighMarginPct,
		LowMarginPct:      p.LowMarginPct,
		Margin:            p.Margin,
		Leverage:          float64(p.Leverage),
		BuyThresholdPct:   p.BuyThresholdPct,
		HighConfidencePct: p.HighConfidencePct,
	}
}

// Normalize clamps every numeric input into its safe range and repairs
// unknown selectors. Each adjustment is reported as a *config.ConfigError.
func (s Settings) Normalize() (Settings, []error) {
	var warns []error
	d := DefaultSettings()

	s.Symbol = adapter.NormalizeSymbol(s.Symbol)
	if s.Mode != Contracts && s.Mode != MarginPct {
		s.Mode = Contracts
	}
	s.HighAmount = config.ClampFloat("high_amount", s.HighAmount, 0, config.MaxContracts, &warns)
	s.LowAmount = config.ClampFloat("low_amount", s.LowAmount, 0, config.MaxContracts, &warns)
	s.HighMarginPct = config.ClampFloat("high_margin_pct", s.HighMarginPct, 0, 100, &warns)
	s.LowMarginPct = config.ClampFloat("low_margin_pct", s.LowMarginPct, 0, 100, &warns)
	s.Margin = config.ClampFloat("margin", s.Margin, 0, config.MaxMargin, &warns)
	s.Leverage = float64(config.Leverage("leverage", s.Leverage, &warns))
	if !(s.BuyThresholdPct > 0) {
		s.BuyThresholdPct = d.BuyThresholdPct
	}
	if !(s.HighConfidencePct > 0) {
		s.HighConfidencePct = d.HighConfidencePct
	}
	return s, warns
}

// Size is the position size for a non-HOLD signal at price. s must be
// normalized. Non-positive prices and percentages yield zero.
func Size(s Settings, conf Confidence, price decimal.Decimal) decimal.Decimal {
	if s.Mode == MarginPct {
		pct := s.LowMarginPct
		if conf == High {
			pct = s.HighMarginPct
		}
		if pct <= 0 || !price.IsPositive() {
			return decimal.Zero
		}
		return decimal.NewFromFloat(s.Margin).
			Mul(decimal.NewFromFloat(pct)).
			Div(hundred).
			Mul(decimal.NewFromFloat(s.Leverage)).
			Div(price)
	}

	amount := s.LowAmount
	if conf == High {
		amount = s.HighAmount
	}
	return decimal.NewFromFloat(amount)
}

// PnL is the unrealized profit of holding qty from prev to cur in the
// direction of sig. HOLD, empty positions and missing prices are zero.
func PnL(sig Signal, prev, cur, qty decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() || !prev.IsPositive() || !cur.IsPositive() {
		return decimal.Zero
	}
	switch sig {
	case Buy:
		return cur.Sub(prev).Mul(qty)
	case Sell:
		return prev.Sub(cur).Mul(qty)
	}
	return decimal.Zero
}
