package repository

import "time"

// Timeframe represents candle resolution buckets in minutes. 390 is one
// regular session (a same-session daily bar); 1950 is one trading week.
type Timeframe int

const (
	TF1m  Timeframe = 1
	TF5m  Timeframe = 5
	TF15m Timeframe = 15
	TF30m Timeframe = 30
	TF1h  Timeframe = 60
	TF1d  Timeframe = 390
	TF1w  Timeframe = 1950
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF30m, TF1h, TF1d, TF1w:
		return true
	default:
		return false
	}
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF5m }

// NormalizeTimeframe converts raw minutes to a valid timeframe (or default).
func NormalizeTimeframe(minutes int) Timeframe {
	if minutes == 0 {
		return DefaultTimeframe()
	}
	tf := Timeframe(minutes)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// Duration returns the bucket width. The daily timeframe is bucketed by
// venue day, not wall time, so callers must special-case TF1d when
// truncating.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf) * time.Minute
}
