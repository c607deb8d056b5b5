package interaction

import (
	"time"

	"github.com/yitech/klinedesk/indicator"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/viewport"
)

// Controller turns pointer input into viewport changes and hover state.
// Coordinates are in the render surface's units (pixels or terminal cells)
// and are mapped through Layout, which the surface keeps current.
type Controller struct {
	Layout   viewport.Layout
	Interval string
	Location *time.Location

	inside bool
	x      float64

	dragging bool
	dragX    float64
	dragFrom int
	dragSet  int // offset after the last drag step
}

// Hover describes the candle under the pointer.
type Hover struct {
	Index     int // into the full series
	Visible   int // into the visible window
	Candle    candle.Candle
	Values    indicator.Values
	Time      string
	ChangePct float64
}

// Enter marks the pointer as over the chart.
func (c *Controller) Enter(x float64) {
	c.inside = true
	c.x = x
}

// Leave hides the hover and abandons any drag.
func (c *Controller) Leave() {
	c.inside = false
	c.dragging = false
}

// PointerDown arms a drag anchored at the current offset.
func (c *Controller) PointerDown(x float64, vp *viewport.Viewport) {
	c.inside = true
	c.x = x
	c.dragging = true
	c.dragX = x
	c.dragFrom = vp.OffsetFromEnd()
	c.dragSet = c.dragFrom
}

// PointerMove updates the hover position, or pans while a drag is armed.
func (c *Controller) PointerMove(x float64, vp *viewport.Viewport, total int) {
	c.inside = true
	c.x = x
	if c.dragging {
		// Carry offset changes made outside the drag, such as a pinned
		// view shifting on append, into the anchor.
		c.dragFrom += vp.OffsetFromEnd() - c.dragSet
		vp.PanFrom(c.dragFrom, x-c.dragX, c.Layout.Spacing, total)
		c.dragSet = vp.OffsetFromEnd()
	}
}

// PointerUp ends a drag.
func (c *Controller) PointerUp() { c.dragging = false }

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool { return c.dragging }

// Wheel zooms when the pointer is over the chart: positive deltaY zooms out,
// negative zooms in. It reports whether the event was consumed; outside the
// chart the caller should let it propagate (page scroll).
func (c *Controller) Wheel(deltaY float64, vp *viewport.Viewport, total int) bool {
	if !c.inside {
		return false
	}
	switch {
	case deltaY > 0:
		vp.Zoom(1, total)
	case deltaY < 0:
		vp.Zoom(-1, total)
	}
	return true
}

// DoubleClick snaps back to the newest candle.
func (c *Controller) DoubleClick(vp *viewport.Viewport) { vp.Reset() }

// Hover resolves the candle nearest the pointer. It reports false while the
// pointer is outside the chart, during a drag, or when nothing is visible.
func (c *Controller) Hover(candles []candle.Candle, set *indicator.Set, vp *viewport.Viewport) (Hover, bool) {
	if !c.inside || c.dragging {
		return Hover{}, false
	}
	start, end := vp.Window(len(candles))
	i := c.Layout.IndexAt(c.x, end-start)
	if i < 0 {
		return Hover{}, false
	}

	cd := candles[start+i]
	h := Hover{
		Index:   start + i,
		Visible: i,
		Candle:  cd,
		Values:  set.At(start + i),
		Time:    FormatTime(cd.OpenTime, c.Interval, c.Location),
	}
	if cd.Open != 0 {
		h.ChangePct = (cd.Close - cd.Open) / cd.Open * 100
	}
	return h, true
}
