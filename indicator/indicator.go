// Package indicator computes technical indicators over a candle series.
//
// Every function is pure and returns a slice aligned 1:1 with its input.
// Entries inside an indicator's warm-up window are NaN; use Defined to test
// them.
package indicator

import "math"

// Defined reports whether v is a computed indicator value.
func Defined(v float64) bool { return !math.IsNaN(v) }

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// EMA is the exponential moving average with k = 2/(period+1), seeded with
// the first value.
func EMA(values []float64, period int) []float64 {
	return emaFrom(values, period)
}

// emaFrom seeds at the first defined value and leaves leading NaNs in place.
func emaFrom(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 {
		return out
	}
	k := 2 / float64(period+1)

	prev := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = v*k + prev*(1-k)
		}
		out[i] = prev
	}
	return out
}

// RSI is Wilder's relative strength index. Entries before index period are
// undefined. A window with no losses reads 100.
func RSI(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d >= 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain, avgLoss := gain/float64(period), loss/float64(period)
	out[period] = rsi(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		avgGain = (avgGain*(p-1) + max(d, 0)) / p
		avgLoss = (avgLoss*(p-1) + max(-d, 0)) / p
		out[i] = rsi(avgGain, avgLoss)
	}
	return out
}

func rsi(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// MACDSeries holds the three MACD lines.
type MACDSeries struct {
	MACD   []float64
	Signal []float64
	Hist   []float64
}

// MACD computes EMA(fast) − EMA(slow), its signal EMA (seeded with the first
// defined MACD value) and the histogram.
func MACD(values []float64, fast, slow, signal int) MACDSeries {
	f, s := EMA(values, fast), EMA(values, slow)

	line := nans(len(values))
	for i := range values {
		line[i] = f[i] - s[i]
	}
	sig := emaFrom(line, signal)

	hist := nans(len(values))
	for i := range values {
		hist[i] = line[i] - sig[i]
	}
	return MACDSeries{MACD: line, Signal: sig, Hist: hist}
}

// Bands holds Bollinger bands.
type Bands struct {
	Mid   []float64
	Upper []float64
	Lower []float64
}

// BOLL computes Bollinger bands: a period SMA ± k population standard
// deviations. Entries before period-1 are undefined.
func BOLL(values []float64, period int, k float64) Bands {
	b := Bands{Mid: nans(len(values)), Upper: nans(len(values)), Lower: nans(len(values))}
	if period <= 0 {
		return b
	}

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]

		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)

		var sq float64
		for _, v := range window {
			sq += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(sq / float64(period))

		b.Mid[i] = mean
		b.Upper[i] = mean + k*sd
		b.Lower[i] = mean - k*sd
	}
	return b
}
