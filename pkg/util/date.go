package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, date-only, legacy DD/MM/YYYY, and
// unix seconds. Returns (t, true) if any worked. All results are UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), true
	}
	// some upstream news feeds ship DD/MM/YYYY publish dates
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return t.UTC(), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 { // milliseconds
			ts = ts / 1000
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignRange widens [from, to] to full bucket boundaries so fusion reads
// always cover whole buckets.
func AlignRange(from, to time.Time, bucket time.Duration) (time.Time, time.Time) {
	if bucket <= 0 {
		return from, to
	}
	from = from.UTC().Truncate(bucket)
	aligned := to.UTC().Truncate(bucket)
	if aligned.Before(to.UTC()) || aligned.Equal(to.UTC()) {
		to = aligned.Add(bucket).Add(-time.Nanosecond)
	}
	return from, to
}
