package interaction

import (
	"strings"
	"time"
)

// FormatTime renders a candle open time at a resolution matching the
// interval: clock time for minute bars, date and hour for hourly bars,
// month and day for daily and weekly bars, year and month for monthly bars.
func FormatTime(openTimeMs int64, interval string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t := time.UnixMilli(openTimeMs).In(loc)

	switch {
	case strings.HasSuffix(interval, "M"):
		return t.Format("2006/01")
	case strings.HasSuffix(interval, "m"):
		return t.Format("15:04")
	case strings.HasSuffix(interval, "h"):
		return t.Format("01/02 15") + ":00"
	}
	return t.Format("01/02")
}
