package models

import (
	"math"
	"regexp"
	"time"
)

// Bar is one OHLCV sample for one symbol at one timestamp. The canonical
// resolution is one minute; aggregated timeframes reuse the same shape.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

var symbolRe = regexp.MustCompile(`^[A-Z][A-Z.]{0,9}$`)

// ValidSymbol reports whether s looks like a US-equity ticker.
func ValidSymbol(s string) bool {
	return symbolRe.MatchString(s)
}

// Valid reports whether the bar is usable: finite OHLCV, a known symbol
// format, and a non-zero timestamp. Bars failing this are dropped at the
// stream boundary without error.
func (b *Bar) Valid() bool {
	if b == nil || !ValidSymbol(b.Symbol) || b.Timestamp.IsZero() {
		return false
	}
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
