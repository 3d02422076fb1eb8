package engine

import (
	"LevelWatch/internal/domain/models"
)

// LevelTracker accumulates session extremes for one symbol. Extended-session
// bars widen PMH/PML; regular-session bars widen the current regular
// extremes, which become PDH/PDL at the next day rollover. Pure
// accumulation: no alerts, no errors.
type LevelTracker struct {
	dayKey string

	extHigh, extLow float64
	hasExt          bool

	regHigh, regLow float64
	hasReg          bool

	priorHigh, priorLow float64
	hasPrior            bool
}

// NewLevelTracker returns an empty tracker; state builds from the first bar.
func NewLevelTracker() *LevelTracker { return &LevelTracker{} }

// Update feeds one bar. A day-key change freezes the just-completed regular
// extremes into the prior-day levels and resets extended extremes.
func (lt *LevelTracker) Update(b *models.Bar) {
	key := models.DayKey(b.Timestamp)
	if lt.dayKey != "" && key != lt.dayKey {
		if lt.hasReg {
			lt.priorHigh, lt.priorLow = lt.regHigh, lt.regLow
			lt.hasPrior = true
		}
		lt.hasExt = false
		lt.hasReg = false
	}
	lt.dayKey = key

	switch models.SessionFor(b.Timestamp) {
	case models.SessionPremarket, models.SessionAfter:
		if !lt.hasExt {
			lt.extHigh, lt.extLow = b.High, b.Low
			lt.hasExt = true
		} else {
			if b.High > lt.extHigh {
				lt.extHigh = b.High
			}
			if b.Low < lt.extLow {
				lt.extLow = b.Low
			}
		}
	case models.SessionRegular:
		if !lt.hasReg {
			lt.regHigh, lt.regLow = b.High, b.Low
			lt.hasReg = true
		} else {
			if b.High > lt.regHigh {
				lt.regHigh = b.High
			}
			if b.Low < lt.regLow {
				lt.regLow = b.Low
			}
		}
	}
}

// Level returns the price for a level identifier, if known yet.
func (lt *LevelTracker) Level(t models.LevelType) (float64, bool) {
	switch t {
	case models.LevelPMH:
		return lt.extHigh, lt.hasExt
	case models.LevelPML:
		return lt.extLow, lt.hasExt
	case models.LevelPDH:
		return lt.priorHigh, lt.hasPrior
	case models.LevelPDL:
		return lt.priorLow, lt.hasPrior
	default:
		return 0, false
	}
}
