package util

import (
	"strconv"
	"time"
)

// ebayTimeLayout is the millisecond-precision UTC form eBay filters accept.
const ebayTimeLayout = "2006-01-02T15:04:05.000Z"

// ParseTime tries RFC3339, RFC3339Nano, the eBay millisecond form and
// unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, ebayTimeLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// EbayTimestamp formats t for an endedAfter style filter.
func EbayTimestamp(t time.Time) string {
	return t.UTC().Format(ebayTimeLayout)
}
