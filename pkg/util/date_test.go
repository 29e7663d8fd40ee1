package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestInWeeklyWindowFridayToSunday(t *testing.T) {
	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 10, 16, 20, 59, 0, 0, time.UTC), false}, // Fri
		{time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC), true},  // Sat
		{time.Date(2026, 10, 18, 20, 59, 0, 0, time.UTC), true}, // Sun
		{time.Date(2026, 10, 18, 21, 0, 0, 0, time.UTC), false},
		{time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC), false}, // Wed
	}
	for _, c := range cases {
		got := InWeeklyWindow(c.at, time.Friday, 21, time.Sunday, 21)
		if got != c.want {
			t.Fatalf("%s: got %v want %v", c.at, got, c.want)
		}
	}
}

func TestInWeeklyWindowWrapping(t *testing.T) {
	// Saturday 22:00 through Monday 02:00 wraps the week boundary
	if !InWeeklyWindow(time.Date(2026, 10, 18, 1, 0, 0, 0, time.UTC), time.Saturday, 22, time.Monday, 2) {
		t.Fatalf("sunday should be inside wrapped window")
	}
	if InWeeklyWindow(time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC), time.Saturday, 22, time.Monday, 2) {
		t.Fatalf("monday 03:00 should be outside")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		" btcusd ":   "BTCUSD",
		"XAUUSDc":    "XAUUSD",
		"XAUUSD.pro": "XAUUSD",
		"EURUSDm":    "EURUSD",
		"US30":       "US30",
	}
	for in, want := range cases {
		if got := NormalizeSymbol(in); got != want {
			t.Fatalf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSymbol(t *testing.T) {
	for _, s := range []string{"XAUUSD", "US30", "BTCUSD"} {
		if !IsSymbol(s) {
			t.Fatalf("IsSymbol(%q) = false", s)
		}
	}
	for _, s := range []string{"", "X", "xauusd", "XAU/USD", "ABCDEFGHIJKLMNOPQRSTUV"} {
		if IsSymbol(s) {
			t.Fatalf("IsSymbol(%q) = true", s)
		}
	}
}
