package repository

import (
	"testing"
	"time"
)

func TestBucketStart(t *testing.T) {
	day := 24 * time.Hour
	in := time.Date(2024, 1, 2, 18, 45, 12, 0, time.UTC)
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := BucketStart(in, day); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	// width <= 0 falls back to the daily default
	if got := BucketStart(in, 0); !got.Equal(want) {
		t.Fatalf("default width: got %v want %v", got, want)
	}
}

func TestBucketKeyRoundTrip(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	key := BucketKey("AAPL", start)
	instrument, got, ok := ParseBucketKey(key)
	if !ok {
		t.Fatalf("ParseBucketKey(%q) failed", key)
	}
	if instrument != "AAPL" || !got.Equal(start) {
		t.Fatalf("got %s %v want AAPL %v", instrument, got, start)
	}

	for _, bad := range []string{"", "@123", "AAPL@", "AAPL@x"} {
		if _, _, ok := ParseBucketKey(bad); ok {
			t.Fatalf("ParseBucketKey(%q) should fail", bad)
		}
	}
}

func TestBucketsIn(t *testing.T) {
	day := 24 * time.Hour
	from := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)

	got := BucketsIn(from, to, day)
	if len(got) != 3 {
		t.Fatalf("got %d buckets want 3", len(got))
	}
	for i, want := range []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	} {
		if !got[i].Equal(want) {
			t.Fatalf("bucket %d = %v want %v", i, got[i], want)
		}
	}

	if got := BucketsIn(to, from, day); got != nil {
		t.Fatalf("inverted range should be nil, got %v", got)
	}
}
