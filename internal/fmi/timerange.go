package fmi

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimeRange is returned for ranges the API should not be asked for
var ErrInvalidTimeRange = errors.New("invalid time range")

// ValidateTimeRange requires start before end and at most one calendar month between them
func ValidateTimeRange(start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidTimeRange)
	}
	if end.After(start.AddDate(0, 1, 0)) {
		return fmt.Errorf("%w: too long period (max 1 month)", ErrInvalidTimeRange)
	}
	return nil
}

// ParseTime accepts the request format (20060102T1504), a date, or RFC 3339. Times without
// a zone are UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{RequestTimeFormat, "2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse time %q", ErrInvalidTimeRange, s)
}

// DefaultRange returns today 00:00 UTC to tomorrow 00:00 UTC
func DefaultRange(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
