package backtest

import (
	"fmt"
	"sort"

	"LevelWatch/internal/domain/models"
)

// Level is a resolved reference price with a stable identifier. A level may
// be traded at most once per calendar day.
type Level struct {
	ID      string
	Type    models.LevelType
	Price   float64
	Touches int
}

// DailyLevelTracker computes session levels incrementally over a sorted
// 1-minute series, exactly as the live tracker defines them: PMH/PML are
// the current day's extended-session extremes seen so far, PDH/PDL freeze
// the previous day's regular session at rollover. Because the tracker
// only knows bars it has been advanced through, a mid-day read never
// reflects extremes printed later that day. Level IDs embed the day key
// so the once-per-day rule keys naturally.
type DailyLevelTracker struct {
	day              string
	extHigh, extLow  float64
	hasExt           bool
	regHigh, regLow  float64
	hasReg           bool
	priorHi, priorLo float64
	hasPrior         bool
}

func NewDailyLevelTracker() *DailyLevelTracker { return &DailyLevelTracker{} }

// Advance folds one 1-minute bar. Bars must arrive in timestamp order.
func (t *DailyLevelTracker) Advance(b *models.Bar) {
	key := models.DayKey(b.Timestamp)
	if key != t.day {
		if t.day != "" && t.hasReg {
			t.priorHi, t.priorLo = t.regHigh, t.regLow
			t.hasPrior = true
		}
		t.hasExt, t.hasReg = false, false
		t.day = key
	}
	switch models.SessionFor(b.Timestamp) {
	case models.SessionPremarket, models.SessionAfter:
		if !t.hasExt {
			t.extHigh, t.extLow = b.High, b.Low
			t.hasExt = true
		} else {
			if b.High > t.extHigh {
				t.extHigh = b.High
			}
			if b.Low < t.extLow {
				t.extLow = b.Low
			}
		}
	case models.SessionRegular:
		if !t.hasReg {
			t.regHigh, t.regLow = b.High, b.Low
			t.hasReg = true
		} else {
			if b.High > t.regHigh {
				t.regHigh = b.High
			}
			if b.Low < t.regLow {
				t.regLow = b.Low
			}
		}
	}
}

// Levels returns the current day's session levels as of the bars consumed
// so far.
func (t *DailyLevelTracker) Levels() []Level {
	if t.day == "" {
		return nil
	}
	var ls []Level
	if t.hasExt {
		ls = append(ls,
			Level{ID: fmt.Sprintf("PMH-%s", t.day), Type: models.LevelPMH, Price: t.extHigh},
			Level{ID: fmt.Sprintf("PML-%s", t.day), Type: models.LevelPML, Price: t.extLow},
		)
	}
	if t.hasPrior {
		ls = append(ls,
			Level{ID: fmt.Sprintf("PDH-%s", t.day), Type: models.LevelPDH, Price: t.priorHi},
			Level{ID: fmt.Sprintf("PDL-%s", t.day), Type: models.LevelPDL, Price: t.priorLo},
		)
	}
	return ls
}

// repeatCluster is an incrementally averaged group of touch prices.
type repeatCluster struct {
	center  float64
	touches int
}

// RepeatLevels infers price levels from historically touched prices,
// scanning only bars strictly before index i within a bounded lookback.
// Each bar contributes its high and low; a touch merges into the nearest
// cluster within tolPct of its center by incremental averaging, which is
// order-sensitive and approximate on purpose. Clusters with at least
// minTouches survive; the top maxLevels by touch count are returned.
func RepeatLevels(bars []models.Bar, i, lookback int, tolPct float64, minTouches, maxLevels int) []Level {
	start := i - lookback
	if start < 0 {
		start = 0
	}
	if i > len(bars) {
		i = len(bars)
	}

	var clusters []*repeatCluster
	merge := func(p float64) {
		var best *repeatCluster
		bestDist := 0.0
		for _, c := range clusters {
			d := abs(p - c.center)
			if d <= abs(c.center)*tolPct && (best == nil || d < bestDist) {
				best, bestDist = c, d
			}
		}
		if best != nil {
			best.center = (best.center*float64(best.touches) + p) / float64(best.touches+1)
			best.touches++
			return
		}
		clusters = append(clusters, &repeatCluster{center: p, touches: 1})
	}
	for j := start; j < i; j++ {
		merge(bars[j].High)
		merge(bars[j].Low)
	}

	kept := clusters[:0]
	for _, c := range clusters {
		if c.touches >= minTouches {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(a, b int) bool { return kept[a].touches > kept[b].touches })
	if len(kept) > maxLevels {
		kept = kept[:maxLevels]
	}

	out := make([]Level, 0, len(kept))
	for _, c := range kept {
		out = append(out, Level{
			ID:      fmt.Sprintf("RPT-%.2f", c.center),
			Price:   c.center,
			Touches: c.touches,
		})
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
