package indicator

import (
	"math"

	"github.com/yitech/klinedesk/model/candle"
)

// VWAP is the cumulative volume-weighted typical price over the series.
// Candles with zero volume carry the previous value forward; entries before
// the first traded candle are undefined.
func VWAP(candles []candle.Candle) []float64 {
	out := nans(len(candles))
	var pv, vol float64
	for i, c := range candles {
		if c.Volume > 0 {
			pv += c.Typical() * c.Volume
			vol += c.Volume
		}
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return out
}

// KDJSeries holds the stochastic K, D and J lines.
type KDJSeries struct {
	K []float64
	D []float64
	J []float64
}

// KDJ computes the stochastic oscillator. RSV is taken over the trailing
// period window (shorter at the start of the series) and reads 50 when the
// window has no range. K and D start from 50.
func KDJ(candles []candle.Candle, period int) KDJSeries {
	out := KDJSeries{K: nans(len(candles)), D: nans(len(candles)), J: nans(len(candles))}
	if period <= 0 {
		return out
	}

	k, d := 50.0, 50.0
	for i, c := range candles {
		hh, ll := math.Inf(-1), math.Inf(1)
		for _, w := range candles[max(0, i-period+1) : i+1] {
			hh = max(hh, w.High)
			ll = min(ll, w.Low)
		}

		rsv := 50.0
		if hh != ll {
			rsv = (c.Close - ll) / (hh - ll) * 100
		}
		k = 2.0/3.0*k + 1.0/3.0*rsv
		d = 2.0/3.0*d + 1.0/3.0*k

		out.K[i] = k
		out.D[i] = d
		out.J[i] = 3*k - 2*d
	}
	return out
}

// ATR is Wilder's average true range. The first true range is high − low;
// the average is seeded with the mean of the first period true ranges at
// index period-1.
func ATR(candles []candle.Candle, period int) []float64 {
	out := nans(len(candles))
	if period <= 0 || len(candles) < period {
		return out
	}

	tr := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			tr[i] = c.High - c.Low
			continue
		}
		prev := candles[i-1].Close
		tr[i] = max(c.High-c.Low, math.Abs(c.High-prev), math.Abs(c.Low-prev))
	}

	var sum float64
	for _, v := range tr[:period] {
		sum += v
	}
	p := float64(period)
	out[period-1] = sum / p
	for i := period; i < len(tr); i++ {
		out[i] = (out[i-1]*(p-1) + tr[i]) / p
	}
	return out
}
