package ticker

import "time"

// PriceTick is a single last-traded price observation.
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is the rolling 24h summary shown in the chart header.
type Stats struct {
	Symbol      string  `json:"symbol"`
	Last        float64 `json:"last"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quote_volume"`
	Change      float64 `json:"change"`
	ChangePct   float64 `json:"change_pct"`
}

// ChangeFrom fills Change and ChangePct from an opening price.
func (s *Stats) ChangeFrom(open float64) {
	s.Change = s.Last - open
	if open > 0 {
		s.ChangePct = s.Change / open * 100
	}
}
