package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"LevelWatch/internal/domain/models"
)

// Params is the injected strategy parameter set. It is swappable at runtime
// on configuration change.
type Params struct {
	TimeframeMin       int
	RetestTolerancePct float64
	RSWindowBars       int
	BreadthBullPct     float64
	BreadthBearPct     float64
	Benchmarks         []string
	WatchSet           []string
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		TimeframeMin:       5,
		RetestTolerancePct: 0.001,
		RSWindowBars:       6,
		BreadthBullPct:     0.60,
		BreadthBearPct:     0.40,
		Benchmarks:         []string{"SPY", "QQQ"},
	}
}

// Result is what one bar produced: zero or more alerts and finalized
// outcomes.
type Result struct {
	Alerts   []models.Alert
	Outcomes []*models.TradeOutcome
}

// FormingCandidate is a symbol currently in the Broken state, waiting for a
// retest.
type FormingCandidate struct {
	Symbol     string           `json:"symbol"`
	Direction  models.Direction `json:"direction"`
	LevelType  models.LevelType `json:"level_type"`
	LevelPrice float64          `json:"level_price"`
	BrokenAt   time.Time        `json:"broken_at"`
}

// Snapshot is the point-in-time view of the live engine for collaborators.
type Snapshot struct {
	Timestamp      time.Time          `json:"timestamp"`
	Bias           models.Bias        `json:"bias"`
	BenchmarkSides map[string]string  `json:"benchmark_sides"`
	BreadthPct     float64            `json:"breadth_pct"`
	BreadthMembers int                `json:"breadth_members"`
	Strong         []string           `json:"strong"`
	Weak           []string           `json:"weak"`
	Forming        []FormingCandidate `json:"forming"`
	LiveOutcomes   int                `json:"live_outcomes"`
}

// Engine owns all per-symbol live state: level trackers, aggregation
// buffers, signal and tap states, and outcome sessions. One inbound bar is
// processed to completion under the engine lock before the next; there is
// no ambient global state.
type Engine struct {
	mu     sync.Mutex
	params Params

	levels   map[string]*LevelTracker
	aggs     map[string]*Aggregator
	states   map[string]*SignalState
	taps     map[string]*TapState
	strength map[string]models.Strength
	bias     *BiasClassifier
	outcomes *OutcomeTracker

	lastBar  time.Time
	alertSeq uint64
}

func New(p Params) *Engine {
	e := &Engine{
		levels:   make(map[string]*LevelTracker),
		aggs:     make(map[string]*Aggregator),
		states:   make(map[string]*SignalState),
		taps:     make(map[string]*TapState),
		strength: make(map[string]models.Strength),
		outcomes: NewOutcomeTracker(),
	}
	e.applyParams(p)
	return e
}

// SetParams swaps the strategy parameter set. Aggregation buffers are
// rebuilt when the timeframe changes; signal states reset to Idle since
// their guards no longer apply.
func (e *Engine) SetParams(p Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rebuild := p.TimeframeMin != e.params.TimeframeMin
	e.applyParams(p)
	if rebuild {
		e.aggs = make(map[string]*Aggregator)
		e.states = make(map[string]*SignalState)
		e.taps = make(map[string]*TapState)
	}
}

func (e *Engine) applyParams(p Params) {
	if p.TimeframeMin <= 0 {
		p.TimeframeMin = 5
	}
	if len(p.Benchmarks) == 0 {
		p.Benchmarks = []string{"SPY", "QQQ"}
	}
	e.params = p
	e.bias = NewBiasClassifier(p.Benchmarks, p.WatchSet, p.BreadthBullPct, p.BreadthBearPct)
}

// Params returns the active parameter set.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

func (e *Engine) isBenchmark(sym string) bool {
	for _, b := range e.params.Benchmarks {
		if b == sym {
			return true
		}
	}
	return false
}

// OnBar processes one 1-minute bar to completion: level update,
// aggregation, bias refresh, state-machine evaluation, outcome updates.
// Invalid bars produce an empty result, never an error.
func (e *Engine) OnBar(b *models.Bar) Result {
	if !b.Valid() {
		return Result{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var res Result
	p := e.params
	sym := b.Symbol
	e.lastBar = b.Timestamp

	lt, ok := e.levels[sym]
	if !ok {
		lt = NewLevelTracker()
		e.levels[sym] = lt
	}
	lt.Update(b)
	e.bias.Update(b)

	agg, ok := e.aggs[sym]
	if !ok {
		agg = NewAggregator(p.TimeframeMin)
		e.aggs[sym] = agg
	}
	completed := agg.Add(b)

	bias := e.bias.Bias()

	if completed != nil && !e.isBenchmark(sym) {
		benchBars := e.benchmarkBars()
		strength := ClassifyStrength(bias, agg.Completed(), benchBars, p.RSWindowBars)
		e.strength[sym] = strength

		st, tap := e.stateFor(sym)
		if a := evalAggregated(sym, st, tap, bias, strength, completed, lt, p); a != nil {
			res.Alerts = append(res.Alerts, e.stamp(a))
		}

		closeTs := completed.Timestamp.Add(time.Duration(p.TimeframeMin) * time.Minute)
		e.outcomes.OnAggClose(sym, completed.Close, closeTs)
	}

	if !e.isBenchmark(sym) {
		st, tap := e.stateFor(sym)
		if a := evalMinute(sym, st, tap, bias, e.strength[sym], b, p); a != nil {
			stamped := e.stamp(a)
			res.Alerts = append(res.Alerts, stamped)
			e.outcomes.Start(&stamped)
		}
		e.outcomes.OnMinuteBar(b)
	}

	res.Outcomes = e.outcomes.FinalizeReady()
	return res
}

func (e *Engine) stateFor(sym string) (*SignalState, *TapState) {
	st, ok := e.states[sym]
	if !ok {
		st = &SignalState{Kind: StateIdle}
		e.states[sym] = st
	}
	tap, ok := e.taps[sym]
	if !ok {
		tap = &TapState{}
		e.taps[sym] = tap
	}
	return st, tap
}

// benchmarkBars returns the completed aggregated bars of the RS benchmark
// (the first configured benchmark).
func (e *Engine) benchmarkBars() []models.Bar {
	bench := e.params.Benchmarks[0]
	if agg, ok := e.aggs[bench]; ok {
		return agg.Completed()
	}
	return nil
}

func (e *Engine) stamp(a *models.Alert) models.Alert {
	e.alertSeq++
	a.ID = fmt.Sprintf("%s-%d-%d", a.Symbol, a.Timestamp.Unix(), e.alertSeq)
	return *a
}

// Snapshot returns the current bias, benchmark sides, strength labels and
// forming candidates.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	frac, n := e.bias.Breadth()
	s := Snapshot{
		Timestamp:      e.lastBar,
		Bias:           e.bias.Bias(),
		BenchmarkSides: e.bias.BenchmarkSides(),
		BreadthPct:     frac * 100,
		BreadthMembers: n,
		LiveOutcomes:   e.outcomes.Live(),
	}
	for sym, st := range e.strength {
		switch st {
		case models.StrengthStrong:
			s.Strong = append(s.Strong, sym)
		case models.StrengthWeak:
			s.Weak = append(s.Weak, sym)
		}
	}
	sort.Strings(s.Strong)
	sort.Strings(s.Weak)
	for sym, st := range e.states {
		if st.Kind == StateBroken {
			s.Forming = append(s.Forming, FormingCandidate{
				Symbol:     sym,
				Direction:  st.Direction,
				LevelType:  st.LevelType,
				LevelPrice: st.LevelPrice,
				BrokenAt:   st.BrokenAt,
			})
		}
	}
	sort.Slice(s.Forming, func(i, j int) bool { return s.Forming[i].Symbol < s.Forming[j].Symbol })
	return s
}
