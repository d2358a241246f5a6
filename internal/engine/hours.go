package engine

import "time"

// NSE 常规交易时段（IST）。
var istZone = time.FixedZone("IST", 5*3600+30*60)

const (
	marketOpenHour    = 9
	marketOpenMinute  = 15
	marketCloseHour   = 15
	marketCloseMinute = 30
)

// withinMarketHours t 是否落在交易时段内。周末恒为 false。
func withinMarketHours(t time.Time) bool {
	t = t.In(istZone)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	open := time.Date(t.Year(), t.Month(), t.Day(), marketOpenHour, marketOpenMinute, 0, 0, istZone)
	close := time.Date(t.Year(), t.Month(), t.Day(), marketCloseHour, marketCloseMinute, 0, 0, istZone)
	return !t.Before(open) && !t.After(close)
}

// afterMarketClose t 是否已过收盘。
func afterMarketClose(t time.Time) bool {
	t = t.In(istZone)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return true
	}
	close := time.Date(t.Year(), t.Month(), t.Day(), marketCloseHour, marketCloseMinute, 0, 0, istZone)
	return t.After(close)
}
