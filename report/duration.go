package report

import (
	"fmt"
	"time"
)

// FormatDuration renders an inactivity span in the coarsest unit it reaches.
// Boundary values belong to the larger unit, so 7 days is "1W+".
func FormatDuration(days int) string {
	switch {
	case days >= 365:
		return fmt.Sprintf("%dY+", days/365)
	case days >= 30:
		return fmt.Sprintf("%dM+", days/30)
	case days >= 7:
		return fmt.Sprintf("%dW+", days/7)
	default:
		return fmt.Sprintf("%dD", days)
	}
}

// DaysBetween counts whole calendar days from 'from' to 'to', ignoring clock
// time and zone offsets. Negative when 'from' is after 'to'.
func DaysBetween(from, to time.Time) int {
	return int(civilDate(to).Sub(civilDate(from)).Hours() / 24)
}

// civilDate keeps the calendar date of t and places it at UTC midnight so
// that DST transitions cannot shift the day count.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
