package util

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-02T15:04:05Z", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), true},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"02/01/2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"1704207845", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), true},
		{"1704207845000", time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not-a-date", time.Time{}, false},
		{"2024-13-40", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := ParseTime(c.in)
		if ok != c.ok {
			t.Fatalf("ParseTime(%q) ok=%v want %v", c.in, ok, c.ok)
		}
		if ok && !got.Equal(c.want) {
			t.Fatalf("ParseTime(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := ParseTimeDefault("garbage", def); !got.Equal(def) {
		t.Fatalf("got %v want default", got)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := ParseTimeDefault("2024-01-02", def); !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestAlignRange(t *testing.T) {
	day := 24 * time.Hour
	from := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC)

	gotFrom, gotTo := AlignRange(from, to, day)
	if !gotFrom.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from=%v", gotFrom)
	}
	wantTo := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if !gotTo.Equal(wantTo) {
		t.Fatalf("to=%v want %v", gotTo, wantTo)
	}

	// zero bucket leaves the range untouched
	gotFrom, gotTo = AlignRange(from, to, 0)
	if !gotFrom.Equal(from) || !gotTo.Equal(to) {
		t.Fatalf("zero bucket changed range: %v %v", gotFrom, gotTo)
	}
}
