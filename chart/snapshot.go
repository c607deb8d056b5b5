package chart

import (
	"github.com/yitech/klinedesk/indicator"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/model/ticker"
)

// Snapshot is a render-ready copy of the session. Candles is the visible
// window; Start is the index of Candles[0] in the full series, which is
// also how Indicators is indexed.
type Snapshot struct {
	Key     Key
	Status  Status
	Warning error
	Failure error

	Candles    []candle.Candle
	Start      int
	Total      int
	Visible    int
	Offset     int
	Indicators *indicator.Set

	Stats    *ticker.Stats
	Last     candle.Candle
	HasLast  bool
	Headline Headline
	Insight  Insight
}

// Headline is the price change shown next to the last price: the 24h
// ticker's when available, otherwise the move from the previous candle.
type Headline struct {
	Change    float64
	ChangePct float64
	FromStats bool
}

// Snapshot copies out everything the render surface needs.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.series.Candles()
	total := len(all)
	s.vp.Clamp(total)
	start, end := s.vp.Window(total)

	snap := Snapshot{
		Key:        s.key,
		Status:     s.status,
		Warning:    s.warning,
		Failure:    s.failure,
		Candles:    all[start:end],
		Start:      start,
		Total:      total,
		Visible:    s.vp.Visible(total),
		Offset:     s.vp.OffsetFromEnd(),
		Indicators: s.indicatorsLocked(),
	}
	if s.stats != nil {
		st := *s.stats
		snap.Stats = &st
	}
	if total > 0 {
		snap.Last, snap.HasLast = all[total-1], true
		snap.Headline = headline(snap.Stats, all)
		snap.Insight = Inspect(all[total-1], snap.Indicators.At(total-1), snap.Stats)
	}
	return snap
}

func headline(stats *ticker.Stats, cs []candle.Candle) Headline {
	if stats != nil {
		return Headline{Change: stats.Change, ChangePct: stats.ChangePct, FromStats: true}
	}
	if len(cs) == 0 {
		return Headline{}
	}
	last := cs[len(cs)-1]
	prev := last
	if len(cs) > 1 {
		prev = cs[len(cs)-2]
	}
	h := Headline{Change: last.Close - prev.Close}
	if prev.Close > 0 {
		h.ChangePct = h.Change / prev.Close * 100
	}
	return h
}
