package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
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

// AlignFromTo rounds the time range down to bar boundaries for a
// minute-based timeframe. Timeframes above an hour align to the minute;
// their buckets follow the venue session, not wall-clock multiples.
func AlignFromTo(from, to time.Time, tfMin int) (time.Time, time.Time) {
    d := time.Minute
    if tfMin > 1 && tfMin <= 60 {
        d = time.Duration(tfMin) * time.Minute
    }
    return from.Truncate(d), to.Truncate(d)
}

// No extra helpers here; use strconv where needed.