package buffer

import (
	"github.com/yitech/klinedesk/model/candle"
)

// DefaultLimit is the number of candles a Series retains.
const DefaultLimit = 500

// Result classifies what Merge did with an incoming candle.
type Result int

const (
	// Replaced means the candle updated the in-progress last candle.
	Replaced Result = iota
	// Appended means the candle opened a new period.
	Appended
	// Stale means the candle was older than the last one and was dropped.
	Stale
)

func (r Result) String() string {
	switch r {
	case Replaced:
		return "replaced"
	case Appended:
		return "appended"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// Series is a bounded, newest-last window of candles with strictly
// increasing open times. It is not safe for concurrent use; the chart
// session serializes access.
type Series struct {
	limit   int
	candles []candle.Candle
}

// New returns an empty Series retaining at most limit candles.
func New(limit int) *Series {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Series{limit: limit}
}

// Merge folds a streamed candle into the series:
//   - same open time as the last candle → replace it
//   - later open time → append, trimming the oldest past the limit
//   - earlier open time → discard
//
// Merging the same candle twice leaves the series unchanged.
func (s *Series) Merge(c candle.Candle) Result {
	n := len(s.candles)
	if n > 0 {
		last := s.candles[n-1].OpenTime
		switch {
		case c.OpenTime == last:
			s.candles[n-1] = c
			return Replaced
		case c.OpenTime < last:
			return Stale
		}
	}

	s.candles = append(s.candles, c)
	if len(s.candles) > s.limit {
		// Copy so the backing array does not grow without bound.
		trimmed := make([]candle.Candle, s.limit, s.limit+1)
		copy(trimmed, s.candles[len(s.candles)-s.limit:])
		s.candles = trimmed
	}
	return Appended
}

// Replace installs a freshly fetched history, normalized and trimmed to the
// limit.
func (s *Series) Replace(history []candle.Candle) {
	cs := candle.Normalize(history)
	if len(cs) > s.limit {
		cs = cs[len(cs)-s.limit:]
	}
	s.candles = append(make([]candle.Candle, 0, s.limit+1), cs...)
}

// Reset discards every candle.
func (s *Series) Reset() { s.candles = nil }

func (s *Series) Len() int   { return len(s.candles) }
func (s *Series) Limit() int { return s.limit }

// Last returns the newest candle.
func (s *Series) Last() (candle.Candle, bool) {
	if len(s.candles) == 0 {
		return candle.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Candles returns a copy of the series, oldest first.
func (s *Series) Candles() []candle.Candle {
	out := make([]candle.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}
