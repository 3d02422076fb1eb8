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

func TestAlignFromTo(t *testing.T) {
    from := time.Date(2024, 10, 10, 10, 12, 30, 0, time.UTC)
    to := time.Date(2024, 10, 10, 11, 3, 5, 0, time.UTC)
    gotFrom, gotTo := AlignFromTo(from, to, 5)
    if gotFrom.Minute() != 10 || gotFrom.Second() != 0 {
        t.Fatalf("unexpected from %v", gotFrom)
    }
    if gotTo.Minute() != 0 || gotTo.Second() != 0 {
        t.Fatalf("unexpected to %v", gotTo)
    }

    // Above an hour only second/minute alignment applies.
    gotFrom, _ = AlignFromTo(from, to, 390)
    if gotFrom.Minute() != 12 || gotFrom.Second() != 0 {
        t.Fatalf("unexpected daily from %v", gotFrom)
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}