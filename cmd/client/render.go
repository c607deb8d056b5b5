package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/yitech/klinedesk/chart"
	"github.com/yitech/klinedesk/indicator"
	"github.com/yitech/klinedesk/interaction"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/papersim"
	"github.com/yitech/klinedesk/viewport"
)

const yAxisWidth = 11 // "  12345.67 │"

const labelEvery = 14 // columns between time labels

// ── header ────────────────────────────────────────────────────────────────────

func renderHeader(snap chart.Snapshot) string {
	k := snap.Key
	title := fmt.Sprintf("%s  %s  %s  [%s]", strings.ToUpper(k.Exchange), k.Symbol, k.Interval, snap.Status)
	if !snap.HasLast {
		return headerStyle.Render(title + "  waiting for data…")
	}

	h := snap.Headline
	style := bullStyle
	if h.Change < 0 {
		style = bearStyle
	}
	line := headerStyle.Render(fmt.Sprintf("%s  %s ", title, formatPrice(snap.Last.Close))) +
		style.Render(fmt.Sprintf("%+.2f%%", h.ChangePct))
	if st := snap.Stats; st != nil {
		line += headerStyle.Render(fmt.Sprintf("  24h H:%s L:%s V:%.2f",
			formatPrice(st.High), formatPrice(st.Low), st.Volume))
	}
	return line
}

func renderInfo(snap chart.Snapshot) string {
	if !snap.HasLast {
		return ""
	}
	c, in := snap.Last, snap.Insight
	status := "open"
	if c.IsClosed {
		status = "closed"
	}
	return footerStyle.Render(fmt.Sprintf(
		"[%s] O:%s H:%s L:%s C:%s V:%.4f  %s  bar %.2f%%  day %.2f%%  vsEMA %+.2f%%  buy %.0f%%  boll %.2f%%  %d/%d",
		status,
		formatPrice(c.Open), formatPrice(c.High), formatPrice(c.Low), formatPrice(c.Close), c.Volume,
		in.Trend, in.IntrabarRangePct, in.DayRangePct, in.PriceVsEMAPct, in.BuyVolumePct, in.BollWidthPct,
		snap.Visible, snap.Total,
	))
}

func renderTooltip(h interaction.Hover) string {
	c, v := h.Candle, h.Values
	return hoverStyle.Render(fmt.Sprintf(
		"%s  O:%s H:%s L:%s C:%s V:%.4f %+.2f%%  EMA %s/%s/%s  BOLL %s/%s/%s  VWAP %s  RSI %s  KDJ %s/%s/%s  MACD %s/%s/%s  ATR %s",
		h.Time,
		formatPrice(c.Open), formatPrice(c.High), formatPrice(c.Low), formatPrice(c.Close), c.Volume, h.ChangePct,
		fmtVal(v.EMAFast), fmtVal(v.EMAMid), fmtVal(v.EMASlow),
		fmtVal(v.BollUpper), fmtVal(v.BollMid), fmtVal(v.BollLower),
		fmtVal(v.VWAP), fmtVal(v.RSI),
		fmtVal(v.K), fmtVal(v.D), fmtVal(v.J),
		fmtVal(v.MACD), fmtVal(v.MACDSignal), fmtVal(v.MACDHist),
		fmtVal(v.ATR),
	))
}

// ── chart ─────────────────────────────────────────────────────────────────────

// column is what one screen column shows: a single candle, or several
// merged when the view is denser than the terminal.
type column struct {
	c    candle.Candle
	last int // index of the last merged candle in the window
	ok   bool
}

// bucket assigns window candles to screen columns through the layout.
func bucket(cs []candle.Candle, l viewport.Layout, width int) []column {
	cols := make([]column, width)
	for i, c := range cs {
		x := int(math.Round(l.PixelX(i))) - yAxisWidth
		if x < 0 || x >= width {
			continue
		}
		col := &cols[x]
		if !col.ok {
			*col = column{c: c, last: i, ok: true}
			continue
		}
		col.c.High = max(col.c.High, c.High)
		col.c.Low = min(col.c.Low, c.Low)
		col.c.Close = c.Close
		col.c.Volume += c.Volume
		col.last = i
	}
	return cols
}

func (m model) renderChart(snap chart.Snapshot, hover interaction.Hover, hovering bool) string {
	chartH := m.chartHeight()
	chartW := m.chartWidth()

	if len(snap.Candles) == 0 {
		msg := "loading…"
		if snap.Failure != nil {
			msg = "no data: " + snap.Failure.Error()
		}
		return emptyChart(msg, chartH, m.width)
	}

	layout := m.layout(len(snap.Candles))
	cols := bucket(snap.Candles, layout, chartW)

	hi, lo := priceRange(snap.Candles)
	if hi == lo {
		hi = lo + 1
	}

	grid := make([][]string, chartH)
	for r := range grid {
		grid[r] = make([]string, chartW)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}

	for x, col := range cols {
		if col.ok {
			renderCandle(grid, col.c, x, chartH, hi, lo)
		}
	}
	for x, col := range cols {
		if !col.ok {
			continue
		}
		i := snap.Start + col.last
		if i < snap.Indicators.Len() {
			overlay(grid, x, snap.Indicators.EMAMid[i], midStyle, chartH, hi, lo)
			overlay(grid, x, snap.Indicators.EMAFast[i], fastStyle, chartH, hi, lo)
		}
	}
	if hovering {
		x := int(math.Round(layout.PixelX(hover.Visible))) - yAxisWidth
		if x >= 0 && x < chartW {
			for row := range grid {
				if grid[row][x] == " " {
					grid[row][x] = hoverStyle.Render("┆")
				}
			}
		}
	}

	var b strings.Builder
	for row := 0; row < chartH; row++ {
		price := rowToPrice(row, chartH, hi, lo)
		b.WriteString(axisStyle.Render(fmt.Sprintf("%9s │", formatPrice(price))))
		b.WriteString(strings.Join(grid[row], ""))
		b.WriteByte('\n')
	}

	b.WriteString(axisStyle.Render(strings.Repeat("─", yAxisWidth+chartW)))
	b.WriteByte('\n')

	b.WriteString(strings.Repeat(" ", yAxisWidth))
	b.WriteString(axisStyle.Render(timeLabels(cols, snap.Key.Interval, chartW)))
	b.WriteByte('\n')

	return b.String()
}

func emptyChart(msg string, chartH, width int) string {
	var b strings.Builder
	for row := 0; row < chartH+2; row++ {
		if row == chartH/2 {
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, warnStyle.Render(msg)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// timeLabels places an open-time label roughly every labelEvery columns.
func timeLabels(cols []column, interval string, width int) string {
	line := []rune(strings.Repeat(" ", width))
	for x := 0; x < width; x += labelEvery {
		for ; x < width && !cols[x].ok; x++ {
		}
		if x >= width {
			break
		}
		label := interaction.FormatTime(cols[x].c.OpenTime, interval, time.Local)
		if x+len(label) > width {
			break
		}
		copy(line[x:], []rune(label))
	}
	return string(line)
}

// renderCandle paints one candle into the grid at column x.
func renderCandle(grid [][]string, c candle.Candle, x, chartH int, hi, lo float64) {
	style := bullStyle
	if !c.Bullish() {
		style = bearStyle
	}

	fH := float64(chartH)
	bodyTop := priceToRow(math.Max(c.Open, c.Close), fH, hi, lo)
	bodyBot := priceToRow(math.Min(c.Open, c.Close), fH, hi, lo)
	wickTop := priceToRow(c.High, fH, hi, lo)
	wickBot := priceToRow(c.Low, fH, hi, lo)

	for row := 0; row < chartH; row++ {
		switch {
		case row >= bodyTop && row <= bodyBot:
			grid[row][x] = style.Render("█")
		case row >= wickTop && row <= wickBot:
			grid[row][x] = wickStyle.Render("│")
		}
	}
}

// overlay dots an indicator value into an empty cell.
func overlay(grid [][]string, x int, v float64, style lipgloss.Style, chartH int, hi, lo float64) {
	if !indicator.Defined(v) || v > hi || v < lo {
		return
	}
	row := priceToRow(v, float64(chartH), hi, lo)
	if grid[row][x] == " " {
		grid[row][x] = style.Render("·")
	}
}

// priceToRow converts a price to a grid row (0 = top = high).
func priceToRow(price, chartH float64, hi, lo float64) int {
	if hi == lo {
		return int(chartH) / 2
	}
	row := (hi - price) / (hi - lo) * (chartH - 1)
	r := int(math.Round(row))
	return min(max(r, 0), int(chartH)-1)
}

// rowToPrice is the inverse of priceToRow.
func rowToPrice(row, chartH int, hi, lo float64) float64 {
	if chartH <= 1 {
		return hi
	}
	return hi - float64(row)/float64(chartH-1)*(hi-lo)
}

// priceRange returns the overall high and low across the visible candles.
func priceRange(candles []candle.Candle) (hi, lo float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	hi, lo = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		hi = max(hi, c.High)
		lo = min(lo, c.Low)
	}
	return hi, lo
}

// formatPrice picks decimals by magnitude so small-cap quotes stay legible.
func formatPrice(p float64) string {
	switch a := math.Abs(p); {
	case a >= 100:
		return fmt.Sprintf("%.2f", p)
	case a >= 1:
		return fmt.Sprintf("%.4f", p)
	}
	return fmt.Sprintf("%.6f", p)
}

func fmtVal(v float64) string {
	if !indicator.Defined(v) {
		return "-"
	}
	return formatPrice(v)
}

// ── paper panel ───────────────────────────────────────────────────────────────

const paperRows = 4

func renderPaper(state papersim.State, recent []papersim.Entry, total int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("paper [%s]  %d entries", state, total)))
	b.WriteByte('\n')
	for i := 0; i < paperRows-1; i++ {
		if i < len(recent) {
			b.WriteString(renderEntry(recent[i]))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func renderEntry(e papersim.Entry) string {
	style := footerStyle
	switch e.Signal {
	case papersim.Buy:
		style = bullStyle
	case papersim.Sell:
		style = bearStyle
	}
	line := fmt.Sprintf("%s  %-4s %-4s %s  size %s @ %s  Δ%s%%  pnl %s  %s %dx",
		e.Timestamp.Local().Format("15:04:05"),
		e.Signal, e.Confidence, e.Symbol,
		e.Size.StringFixed(4), e.Price.StringFixed(2), e.DeltaPct.StringFixed(3),
		e.UnrealizedPnL.StringFixed(4), e.Mode, e.Leverage)
	if e.PriceFallback {
		line += "  (est)"
	}
	return style.Render(line)
}

// ── footer ────────────────────────────────────────────────────────────────────

func (m model) renderFooter(snap chart.Snapshot) string {
	if m.editing {
		return headerStyle.Render("symbol: " + m.input + "█") + footerStyle.Render("  [enter] open  [esc] cancel")
	}
	help := footerStyle.Render("[q] quit  [[ ]] interval  [e] exchange  [s] symbol  [r] refresh  [p] paper  [+/-] zoom  [←/→] pan  [0] latest")
	switch {
	case snap.Warning != nil:
		help += "  " + warnStyle.Render(snap.Warning.Error())
	case len(m.warnings) > 0:
		help += "  " + warnStyle.Render(fmt.Sprintf("%d config values adjusted", len(m.warnings)))
	}
	return lipgloss.NewStyle().MaxWidth(max(1, m.width)).Render(help)
}
