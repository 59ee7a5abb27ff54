package clock

import (
	"testing"
	"time"
)

func TestZoneClockUsesZoneDate(t *testing.T) {
	c, err := NewZoneClock("Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewZoneClock failed: %v", err)
	}
	// 20:00 UTC is already the next day in IST (+05:30).
	c.now = func() time.Time { return time.Date(2025, 1, 9, 20, 0, 0, 0, time.UTC) }

	got := c.Today()
	if got.Year() != 2025 || got.Month() != time.January || got.Day() != 10 {
		t.Fatalf("expected 2025-01-10, got %s", got.Format("2006-01-02"))
	}
	if got.Hour() != 0 || got.Minute() != 0 {
		t.Fatalf("expected midnight, got %s", got)
	}
}

func TestNewZoneClockRejectsUnknownZone(t *testing.T) {
	if _, err := NewZoneClock("Mars/Olympus_Mons"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}

func TestZeroZoneClockUsesUTC(t *testing.T) {
	c := &ZoneClock{now: func() time.Time { return time.Date(2025, 1, 9, 23, 30, 0, 0, time.UTC) }}

	got := c.Today()
	if got.Location() != time.UTC || got.Day() != 9 {
		t.Fatalf("expected 2025-01-09 UTC, got %s", got)
	}
}
