package domain

import (
	"time"
)

const dateLayout = "2006-01-02"

// NextPayoutDate returns the same day-of-month one calendar month after t, at
// midnight UTC. Days that do not exist in the target month are clamped to its
// last day, so Jan 31 pays out on Feb 28 (or 29).
func NextPayoutDate(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, ErrInvalidDate
	}
	t = t.UTC()

	year, month, day := t.Date()
	targetYear, targetMonth := year, month+1
	if targetMonth > time.December {
		targetMonth = time.January
		targetYear++
	}

	if last := daysIn(targetYear, targetMonth); day > last {
		day = last
	}
	return time.Date(targetYear, targetMonth, day, 0, 0, 0, 0, time.UTC), nil
}

// ParseDate parses a YYYY-MM-DD calendar date and rejects dates such as 2025-02-30.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
