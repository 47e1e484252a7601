package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultBucket is the fusion window width used when config is silent.
const DefaultBucket = 24 * time.Hour

// BucketStart truncates t to its bucket boundary in UTC.
func BucketStart(t time.Time, width time.Duration) time.Time {
	if width <= 0 {
		width = DefaultBucket
	}
	return t.UTC().Truncate(width)
}

// BucketKey is the dirty-set and lock key for one (instrument, bucket).
func BucketKey(instrument string, start time.Time) string {
	return fmt.Sprintf("%s@%d", instrument, start.Unix())
}

// ParseBucketKey inverts BucketKey.
func ParseBucketKey(key string) (instrument string, start time.Time, ok bool) {
	i := strings.LastIndexByte(key, '@')
	if i <= 0 {
		return "", time.Time{}, false
	}
	sec, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return key[:i], time.Unix(sec, 0).UTC(), true
}

// BucketsIn returns the bucket start times covering [from, to], inclusive
// on both bucket boundaries, in ascending order.
func BucketsIn(from, to time.Time, width time.Duration) []time.Time {
	if width <= 0 {
		width = DefaultBucket
	}
	start := BucketStart(from, width)
	end := BucketStart(to, width)
	if end.Before(start) {
		return nil
	}
	out := make([]time.Time, 0, end.Sub(start)/width+1)
	for b := start; !b.After(end); b = b.Add(width) {
		out = append(out, b)
	}
	return out
}
