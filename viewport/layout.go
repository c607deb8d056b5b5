package viewport

import "math"

// Layout maps visible-slice indexes to horizontal pixel (or cell)
// coordinates: candle i sits at Left + i·Spacing.
type Layout struct {
	Left    float64
	Spacing float64
}

// Fit spreads n candles across width starting at left.
func Fit(left, width float64, n int) Layout {
	if n <= 1 {
		return Layout{Left: left + width/2, Spacing: width}
	}
	return Layout{Left: left, Spacing: width / float64(n-1)}
}

// PixelX is the x coordinate of visible candle i.
func (l Layout) PixelX(i int) float64 {
	return l.Left + float64(i)*l.Spacing
}

// IndexAt returns the visible candle nearest to x, clamped to [0, n-1].
// It returns -1 when nothing is visible.
func (l Layout) IndexAt(x float64, n int) int {
	if n <= 0 {
		return -1
	}
	if l.Spacing <= 0 {
		return 0
	}
	i := int(math.Round((x - l.Left) / l.Spacing))
	return min(max(i, 0), n-1)
}
