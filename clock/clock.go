// Package clock supplies the reference date for reports.
package clock

import (
	"fmt"
	"time"
)

// Clock returns the current calendar date.
type Clock interface {
	Today() time.Time
}

// ZoneClock reads the wall clock in a fixed zone, so the reference date does
// not depend on where the process runs. A nil Location means UTC.
type ZoneClock struct {
	Location *time.Location
	now      func() time.Time
}

// NewZoneClock loads the named IANA zone.
func NewZoneClock(zone string) (*ZoneClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", zone, err)
	}
	return &ZoneClock{Location: loc, now: time.Now}, nil
}

// Today returns midnight of the current date in the clock's zone.
func (c *ZoneClock) Today() time.Time {
	now := c.now
	if now == nil {
		now = time.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now().In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Fixed always returns the same date. Used by the local CLI and tests.
type Fixed time.Time

func (f Fixed) Today() time.Time {
	return time.Time(f)
}
