package indicator

import (
	"math"

	"github.com/yitech/klinedesk/model/candle"
)

// Params configures the dashboard indicator set.
type Params struct {
	EMAFast, EMAMid, EMASlow int
	BollPeriod               int
	BollK                    float64
	RSIPeriod                int
	KDJPeriod                int
	MACDFast, MACDSlow       int
	MACDSignal               int
	ATRPeriod                int
}

// DefaultParams mirrors the classic exchange chart overlays.
var DefaultParams = Params{
	EMAFast:    7,
	EMAMid:     25,
	EMASlow:    99,
	BollPeriod: 20,
	BollK:      2,
	RSIPeriod:  14,
	KDJPeriod:  9,
	MACDFast:   12,
	MACDSlow:   26,
	MACDSignal: 9,
	ATRPeriod:  14,
}

// Set is every indicator computed over one series.
type Set struct {
	EMAFast, EMAMid, EMASlow []float64
	Boll                     Bands
	VWAP                     []float64
	RSI                      []float64
	KDJ                      KDJSeries
	MACD                     MACDSeries
	ATR                      []float64
}

// Compute builds the default indicator set over candles.
func Compute(candles []candle.Candle) *Set {
	return ComputeWith(candles, DefaultParams)
}

// ComputeWith builds the indicator set with custom periods.
func ComputeWith(candles []candle.Candle, p Params) *Set {
	closes := candle.Closes(candles)
	return &Set{
		EMAFast: EMA(closes, p.EMAFast),
		EMAMid:  EMA(closes, p.EMAMid),
		EMASlow: EMA(closes, p.EMASlow),
		Boll:    BOLL(closes, p.BollPeriod, p.BollK),
		VWAP:    VWAP(candles),
		RSI:     RSI(closes, p.RSIPeriod),
		KDJ:     KDJ(candles, p.KDJPeriod),
		MACD:    MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal),
		ATR:     ATR(candles, p.ATRPeriod),
	}
}

// Len is the length of the series the set was computed over.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.VWAP)
}

// Values is every indicator at one index, as shown in the hover tooltip.
type Values struct {
	EMAFast, EMAMid, EMASlow      float64
	BollMid, BollUpper, BollLower float64
	VWAP                          float64
	RSI                           float64
	K, D, J                       float64
	MACD, MACDSignal, MACDHist    float64
	ATR                           float64
}

// At returns the indicator values at index i; out-of-range indexes yield all
// NaN.
func (s *Set) At(i int) Values {
	if i < 0 || i >= s.Len() {
		n := math.NaN()
		return Values{n, n, n, n, n, n, n, n, n, n, n, n, n, n, n}
	}
	return Values{
		EMAFast: s.EMAFast[i], EMAMid: s.EMAMid[i], EMASlow: s.EMASlow[i],
		BollMid: s.Boll.Mid[i], BollUpper: s.Boll.Upper[i], BollLower: s.Boll.Lower[i],
		VWAP: s.VWAP[i],
		RSI:  s.RSI[i],
		K:    s.KDJ.K[i], D: s.KDJ.D[i], J: s.KDJ.J[i],
		MACD: s.MACD.MACD[i], MACDSignal: s.MACD.Signal[i], MACDHist: s.MACD.Hist[i],
		ATR: s.ATR[i],
	}
}
