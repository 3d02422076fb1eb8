package engine

import (
	"LevelWatch/internal/domain/models"
)

// minBreadthMembers is the minimum number of watch-set members with VWAP
// data before breadth participates; below it, benchmark alignment decides
// alone.
const minBreadthMembers = 3

// vwapState accumulates a session VWAP (typical price x volume) for one
// symbol, reset at each venue day rollover.
type vwapState struct {
	dayKey string
	pv     float64
	vol    float64
	last   float64
}

func (v *vwapState) update(b *models.Bar) {
	key := models.DayKey(b.Timestamp)
	if v.dayKey != key {
		v.dayKey = key
		v.pv, v.vol = 0, 0
	}
	tp := (b.High + b.Low + b.Close) / 3
	v.pv += tp * b.Volume
	v.vol += b.Volume
	v.last = b.Close
}

// side returns +1 above VWAP, -1 below, 0 unknown (no volume yet).
func (v *vwapState) side() int {
	if v.vol == 0 {
		return 0
	}
	vwap := v.pv / v.vol
	switch {
	case v.last > vwap:
		return 1
	case v.last < vwap:
		return -1
	default:
		return 0
	}
}

// BiasClassifier derives the market bias from two benchmark instruments'
// price-vs-VWAP sides and breadth across a watch set. Both signals must
// agree for a non-neutral bias.
type BiasClassifier struct {
	benchmarks []string
	watch      []string
	states     map[string]*vwapState
	bullPct    float64
	bearPct    float64
}

func NewBiasClassifier(benchmarks, watch []string, bullPct, bearPct float64) *BiasClassifier {
	c := &BiasClassifier{
		benchmarks: benchmarks,
		watch:      watch,
		states:     make(map[string]*vwapState),
		bullPct:    bullPct,
		bearPct:    bearPct,
	}
	for _, s := range benchmarks {
		c.states[s] = &vwapState{}
	}
	for _, s := range watch {
		if _, ok := c.states[s]; !ok {
			c.states[s] = &vwapState{}
		}
	}
	return c
}

// Update feeds a 1-minute bar; bars for untracked symbols are ignored.
func (c *BiasClassifier) Update(b *models.Bar) {
	if st, ok := c.states[b.Symbol]; ok {
		st.update(b)
	}
}

// benchmarkSide returns the agreed benchmark direction, or 0 when the
// benchmarks disagree or lack data.
func (c *BiasClassifier) benchmarkSide() int {
	if len(c.benchmarks) == 0 {
		return 0
	}
	agreed := 0
	for i, s := range c.benchmarks {
		side := c.states[s].side()
		if side == 0 {
			return 0
		}
		if i == 0 {
			agreed = side
		} else if side != agreed {
			return 0
		}
	}
	return agreed
}

// Breadth returns the fraction of watch-set members above their own VWAP
// and how many members had data.
func (c *BiasClassifier) Breadth() (float64, int) {
	above, n := 0, 0
	for _, s := range c.watch {
		switch c.states[s].side() {
		case 1:
			above++
			n++
		case -1:
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return float64(above) / float64(n), n
}

// Bias computes the effective bias: bullish only when benchmark alignment
// and breadth agree bullish, symmetrically for bearish, else neutral.
// Breadth falls back to the benchmark side alone when too few members have
// data.
func (c *BiasClassifier) Bias() models.Bias {
	bench := c.benchmarkSide()
	if bench == 0 {
		return models.BiasNeutral
	}

	frac, n := c.Breadth()
	if n < minBreadthMembers {
		if bench > 0 {
			return models.BiasBullish
		}
		return models.BiasBearish
	}

	switch {
	case bench > 0 && frac >= c.bullPct:
		return models.BiasBullish
	case bench < 0 && frac <= c.bearPct:
		return models.BiasBearish
	default:
		return models.BiasNeutral
	}
}

// BenchmarkSides reports each benchmark's VWAP side for snapshots:
// "above", "below" or "flat".
func (c *BiasClassifier) BenchmarkSides() map[string]string {
	out := make(map[string]string, len(c.benchmarks))
	for _, s := range c.benchmarks {
		switch c.states[s].side() {
		case 1:
			out[s] = "above"
		case -1:
			out[s] = "below"
		default:
			out[s] = "flat"
		}
	}
	return out
}
