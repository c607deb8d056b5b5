package viewport

import "math"

const (
	// MinVisible is the fewest candles the chart will show.
	MinVisible = 40
	// DefaultVisible is the initial zoom level.
	DefaultVisible = 180
	// ZoomStep is how many candles one wheel notch adds or removes.
	ZoomStep = 14
)

// Viewport tracks which slice of a series is on screen: how many candles
// are visible and how far the right edge sits back from the newest candle.
//
// The effective visible count is min(VisibleCount, total) and the offset
// always satisfies 0 ≤ OffsetFromEnd ≤ total − effective.
type Viewport struct {
	limit   int
	visible int
	offset  int
}

// New returns a viewport for series bounded at limit candles.
func New(limit int) *Viewport {
	if limit < MinVisible {
		limit = MinVisible
	}
	return &Viewport{limit: limit, visible: min(DefaultVisible, limit)}
}

// VisibleCount is the configured zoom level in candles.
func (v *Viewport) VisibleCount() int { return v.visible }

// OffsetFromEnd is how many candles the view is panned back from the newest.
func (v *Viewport) OffsetFromEnd() int { return v.offset }

// Visible is the number of candles actually shown for a series of length total.
func (v *Viewport) Visible(total int) int { return max(0, min(v.visible, total)) }

// Zoom changes the visible count by one ZoomStep: positive direction zooms
// out (more candles), negative zooms in. The count stays within
// [MinVisible, min(limit, total)] and never drops below MinVisible.
func (v *Viewport) Zoom(direction, total int) {
	next := v.visible
	switch {
	case direction > 0:
		next += ZoomStep
	case direction < 0:
		next -= ZoomStep
	default:
		return
	}
	upper := max(MinVisible, min(v.limit, total))
	v.visible = min(max(next, MinVisible), upper)
	v.Clamp(total)
}

// CandlesFor converts a pixel distance into a whole number of candles.
func CandlesFor(pixelDelta, pixelsPerCandle float64) int {
	if pixelsPerCandle <= 0 {
		return 0
	}
	return int(math.Round(pixelDelta / pixelsPerCandle))
}

// Pan moves the view by pixelDelta; dragging right (positive delta) reveals
// older candles.
func (v *Viewport) Pan(pixelDelta, pixelsPerCandle float64, total int) {
	v.PanFrom(v.offset, pixelDelta, pixelsPerCandle, total)
}

// PanFrom sets the offset relative to origin, the offset captured when a
// drag started. Anchoring to the drag origin keeps sub-candle movements
// from being lost to rounding.
func (v *Viewport) PanFrom(origin int, pixelDelta, pixelsPerCandle float64, total int) {
	v.offset = origin + CandlesFor(pixelDelta, pixelsPerCandle)
	v.Clamp(total)
}

// Reset snaps the view back to the newest candle.
func (v *Viewport) Reset() { v.offset = 0 }

// OnAppend keeps a panned-back view fixed on the same candles when a new
// candle is appended. A view pinned to the newest candle keeps following.
func (v *Viewport) OnAppend(total int) {
	if v.offset > 0 {
		v.offset++
	}
	v.Clamp(total)
}

// Clamp restores the offset invariant after the series length changed.
func (v *Viewport) Clamp(total int) {
	maxOffset := max(0, total-v.Visible(total))
	v.offset = min(max(v.offset, 0), maxOffset)
}

// Window returns the [start, end) indexes of the visible candles.
func (v *Viewport) Window(total int) (start, end int) {
	end = max(0, total-v.offset)
	start = max(0, end-v.Visible(total))
	return start, end
}
