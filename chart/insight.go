package chart

import (
	"github.com/yitech/klinedesk/indicator"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/model/ticker"
)

// Trend is the EMA stack alignment.
type Trend int

const (
	Ranging Trend = iota
	Uptrend
	Downtrend
)

func (t Trend) String() string {
	switch t {
	case Uptrend:
		return "uptrend"
	case Downtrend:
		return "downtrend"
	}
	return "ranging"
}

// Insight is the derived readout for one candle. Percentages are zero when
// their denominator is missing.
type Insight struct {
	IntrabarRangePct float64
	DayRangePct      float64
	PriceVsEMAPct    float64
	BuyVolumePct     float64
	BollWidthPct     float64
	Trend            Trend
}

// Inspect derives the readout for c given its indicator values and the
// optional 24h stats.
func Inspect(c candle.Candle, v indicator.Values, stats *ticker.Stats) Insight {
	var in Insight
	in.IntrabarRangePct = pct(c.High-c.Low, c.Open)
	if stats != nil {
		in.DayRangePct = pct(stats.High-stats.Low, stats.Low)
	}
	if indicator.Defined(v.EMAMid) {
		in.PriceVsEMAPct = pct(c.Close-v.EMAMid, v.EMAMid)
	}
	in.BuyVolumePct = pct(c.TakerBuyBaseVolume, c.Volume)
	if indicator.Defined(v.BollMid) {
		in.BollWidthPct = pct(v.BollUpper-v.BollLower, v.BollMid)
	}

	if indicator.Defined(v.EMAFast) && indicator.Defined(v.EMAMid) && indicator.Defined(v.EMASlow) {
		switch {
		case v.EMAFast > v.EMAMid && v.EMAMid > v.EMASlow:
			in.Trend = Uptrend
		case v.EMAFast < v.EMAMid && v.EMAMid < v.EMASlow:
			in.Trend = Downtrend
		}
	}
	return in
}

func pct(num, den float64) float64 {
	if !(den > 0) {
		return 0
	}
	return num / den * 100
}
