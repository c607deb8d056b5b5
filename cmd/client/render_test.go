package main

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/yitech/klinedesk/chart"
	"github.com/yitech/klinedesk/interaction"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/papersim"
	"github.com/yitech/klinedesk/viewport"
)

func bars(n int) []candle.Candle {
	out := make([]candle.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = candle.Candle{OpenTime: int64(i+1) * 60_000, Open: p, High: p + 2, Low: p - 1, Close: p + 1, Volume: 1}
	}
	return out
}

func TestPriceToRow(t *testing.T) {
	assert.Equal(t, 0, priceToRow(110, 11, 110, 100))
	assert.Equal(t, 10, priceToRow(100, 11, 110, 100))
	assert.Equal(t, 5, priceToRow(105, 11, 110, 100))
	assert.Equal(t, 0, priceToRow(200, 11, 110, 100))
	assert.Equal(t, 10, priceToRow(0, 11, 110, 100))
	assert.InDelta(t, 105.0, rowToPrice(5, 11, 110, 100), 1e-9)
}

func TestPriceRange(t *testing.T) {
	hi, lo := priceRange(bars(5))
	assert.Equal(t, 106.0, hi)
	assert.Equal(t, 99.0, lo)

	hi, lo = priceRange(nil)
	assert.Zero(t, hi)
	assert.Zero(t, lo)
}

func TestBucketSparse(t *testing.T) {
	cs := bars(5)
	cols := bucket(cs, viewport.Fit(yAxisWidth, 8, 5), 9)
	var filled []int
	for x, c := range cols {
		if c.ok {
			filled = append(filled, x)
		}
	}
	assert.Equal(t, []int{0, 2, 4, 6, 8}, filled)
	assert.Equal(t, 4, cols[8].last)
}

func TestBucketMergesDenseView(t *testing.T) {
	cs := bars(4)
	cols := bucket(cs, viewport.Fit(yAxisWidth, 1, 4), 2)

	assert.True(t, cols[0].ok)
	assert.True(t, cols[1].ok)
	// 0 and 1 round onto column 0; 2 and 3 onto column 1.
	assert.Equal(t, 1, cols[0].last)
	assert.Equal(t, 103.0, cols[0].c.High)
	assert.Equal(t, 99.0, cols[0].c.Low)
	assert.Equal(t, 2.0, cols[0].c.Volume)
	assert.Equal(t, cs[1].Close, cols[0].c.Close)
	assert.Equal(t, cs[0].Open, cols[0].c.Open)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "64000.50", formatPrice(64000.5))
	assert.Equal(t, "1.2346", formatPrice(1.23456))
	assert.Equal(t, "0.000123", formatPrice(0.000123))
}

func TestTimeLabels(t *testing.T) {
	cols := bucket(bars(30), viewport.Fit(yAxisWidth, 29, 30), 30)
	line := timeLabels(cols, "1m", 30)
	assert.Len(t, []rune(line), 30)
	assert.Equal(t, 2, strings.Count(line, ":"))
}

func TestRenderEntry(t *testing.T) {
	e := papersim.Entry{
		Signal: papersim.Buy, Confidence: papersim.High, Symbol: "BTCUSDT",
		Size: decimal.RequireFromString("0.01"), Price: decimal.RequireFromString("100.2"),
		DeltaPct: decimal.RequireFromString("0.2"), UnrealizedPnL: decimal.RequireFromString("0.002"),
		Mode: papersim.Contracts, Leverage: 10, PriceFallback: true,
	}
	out := renderEntry(e)
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "0.0100 @ 100.20")
	assert.Contains(t, out, "pnl 0.0020")
	assert.Contains(t, out, "(est)")
}

func TestRenderChartFailure(t *testing.T) {
	m := model{width: 80, height: 30}
	out := m.renderChart(chart.Snapshot{Status: chart.Failed, Failure: assert.AnError}, interaction.Hover{}, false)
	assert.Contains(t, out, "no data")
}

func TestRenderChartDraws(t *testing.T) {
	m := model{width: 60, height: 30}
	cs := bars(50)
	snap := chart.Snapshot{Candles: cs, Total: 50, Visible: 50}
	out := m.renderChart(snap, interaction.Hover{}, false)
	assert.Equal(t, m.chartHeight()+2, strings.Count(out, "\n"))
	assert.Contains(t, out, "│")
}
