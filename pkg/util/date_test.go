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

func TestParseTimeEbay(t *testing.T) {
	got, ok := ParseTime("2024-10-10T10:10:10.000Z")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Hour() != 10 || got.Day() != 10 {
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

func TestEbayTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	if got := EbayTimestamp(ts); got != "2026-01-02T02:04:05.000Z" {
		t.Fatalf("EbayTimestamp = %s", got)
	}
}

func TestParsePrice(t *testing.T) {
	tests := map[string]float64{
		"$1,250":            1250,
		"Price: $89.99 OBO": 89.99,
		"$ 40":              40,
		"Free":              0,
		"":                  0,
	}
	for in, want := range tests {
		if got := ParsePrice(in); got != want {
			t.Errorf("ParsePrice(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSearchQuery(t *testing.T) {
	if got := SearchQuery(" Apple ", "", "iPhone 13"); got != "Apple iPhone 13" {
		t.Fatalf("SearchQuery = %q", got)
	}
}
