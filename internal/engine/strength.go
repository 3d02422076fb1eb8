package engine

import (
	"LevelWatch/internal/domain/models"
)

// pctReturn computes the percentage return over the last window completed
// bars, closing at the final bar. Requires window+1 bars.
func pctReturn(bars []models.Bar, window int) (float64, bool) {
	if len(bars) < window+1 {
		return 0, false
	}
	base := bars[len(bars)-1-window].Close
	if base == 0 {
		return 0, false
	}
	return (bars[len(bars)-1].Close - base) / base * 100, true
}

// ClassifyStrength labels symbol return vs benchmark return over the last
// window aggregated bars, conditioned on bias. Insufficient history yields
// NONE, never an error.
func ClassifyStrength(bias models.Bias, symBars, benchBars []models.Bar, window int) models.Strength {
	if bias == models.BiasNeutral || window <= 0 {
		return models.StrengthNone
	}
	symRet, ok := pctReturn(symBars, window)
	if !ok {
		return models.StrengthNone
	}
	benchRet, ok := pctReturn(benchBars, window)
	if !ok {
		return models.StrengthNone
	}
	switch bias {
	case models.BiasBullish:
		if symRet > benchRet {
			return models.StrengthStrong
		}
	case models.BiasBearish:
		if symRet < benchRet {
			return models.StrengthWeak
		}
	}
	return models.StrengthNone
}
