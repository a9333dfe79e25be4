package scraper

import "time"

// Euronext Amsterdam cash hours, with a grace minute after the open auction.
const (
	marketOpenMinutes  = 9*60 + 16
	marketCloseMinutes = 17*60 + 45
)

var amsterdam = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		return time.FixedZone("CET", 60*60)
	}
	return loc
}()

// IsMarketOpen reports whether t falls inside trading hours (09:16 to 17:45
// Amsterdam time, Monday through Friday).
func IsMarketOpen(t time.Time) bool {
	t = t.In(amsterdam)
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= marketOpenMinutes && minutes <= marketCloseMinutes
}
