package candle

import (
	"strconv"
	"time"
)

// Intervals lists the intervals the chart can display, in Binance notation.
var Intervals = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M"}

// Duration converts a Binance-style interval ("1m", "4h", "1d", "1w", "1M")
// to a duration. Months are approximated as 30 days. Unknown intervals
// return 0.
func Duration(interval string) time.Duration {
	if len(interval) < 2 {
		return 0
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0
	}

	d := time.Duration(n)
	switch interval[len(interval)-1] {
	case 'm':
		return d * time.Minute
	case 'h':
		return d * time.Hour
	case 'd':
		return d * 24 * time.Hour
	case 'w':
		return d * 7 * 24 * time.Hour
	case 'M':
		return d * 30 * 24 * time.Hour
	}
	return 0
}

// ValidInterval reports whether interval is one of Intervals.
func ValidInterval(interval string) bool {
	for _, iv := range Intervals {
		if iv == interval {
			return true
		}
	}
	return false
}
