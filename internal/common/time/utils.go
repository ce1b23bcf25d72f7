package time

import (
	"time"
)

// GetCurrentDate returns the current date in "2006-01-02" format (UTC)
func GetCurrentDate() string {
	return time.Now().UTC().Format("2006-01-02")
}

// FormatDate formats a time.Time to "2006-01-02" format
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDate parses a date string in "2006-01-02" format
func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// IsSameDay checks if two dates are on the same day
func IsSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// IsNewDay checks if the given date is a different day than today
func IsNewDay(date time.Time) bool {
	now := time.Now().UTC()
	return !IsSameDay(date, now)
}

// GetTomorrowStart returns the start of tomorrow (midnight UTC), used by the
// daily quota reset
func GetTomorrowStart() time.Time {
	now := time.Now().UTC()
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC)
}
