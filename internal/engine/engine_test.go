package engine

import (
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
)

func vt(day, hour, min int) time.Time {
	return time.Date(2024, 3, day, hour, min, 0, 0, models.VenueTZ())
}

func bar(sym string, ts time.Time, o, h, l, c float64) *models.Bar {
	return &models.Bar{Symbol: sym, Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func testParams() Params {
	return Params{
		TimeframeMin:       5,
		RetestTolerancePct: 0.001,
		RSWindowBars:       1,
		BreadthBullPct:     0.60,
		BreadthBearPct:     0.40,
		Benchmarks:         []string{"SPY"},
		WatchSet:           []string{"AAPL"},
	}
}

// Drives a full break-then-retest sequence through OnBar: premarket sets
// PMH, benchmark and symbol trend up, the second aggregated close breaks
// the level, and a later minute bar taps the band for an entry.
func TestEngineBreakThenEntry(t *testing.T) {
	e := New(testParams())

	// Premarket extreme: PMH 100.
	e.OnBar(bar("AAPL", vt(12, 8, 0), 98, 100, 95, 98))

	// SPY closes above its session VWAP on every bar.
	spy := func(ts time.Time, c float64) *models.Bar {
		return bar("SPY", ts, c-1, c, c-2, c)
	}

	// Bucket 09:30 completes when the 09:35 bars arrive.
	e.OnBar(spy(vt(12, 9, 30), 501))
	e.OnBar(bar("AAPL", vt(12, 9, 30), 99.8, 100.4, 99.7, 100.3))
	e.OnBar(spy(vt(12, 9, 35), 501))
	res := e.OnBar(bar("AAPL", vt(12, 9, 35), 100.3, 100.7, 100.2, 100.6))
	if len(res.Alerts) != 0 {
		t.Fatalf("no alert expected before relative strength exists, got %+v", res.Alerts)
	}

	// Bucket 09:35 completes: AAPL outpaced SPY, close 100.6 > PMH 100.
	e.OnBar(spy(vt(12, 9, 40), 501))
	res = e.OnBar(bar("AAPL", vt(12, 9, 40), 100.6, 100.9, 100.4, 100.8))
	if len(res.Alerts) != 1 {
		t.Fatalf("expected forming alert, got %d alerts", len(res.Alerts))
	}
	a := res.Alerts[0]
	if a.Kind != models.AlertForming || a.LevelType != models.LevelPMH || a.Direction != models.DirectionLong {
		t.Fatalf("unexpected forming alert %+v", a)
	}
	if a.LevelPrice != 100 {
		t.Fatalf("expected level 100, got %v", a.LevelPrice)
	}

	snap := e.Snapshot()
	if len(snap.Forming) != 1 || snap.Forming[0].Symbol != "AAPL" {
		t.Fatalf("expected AAPL forming in snapshot, got %+v", snap.Forming)
	}
	if snap.Bias != models.BiasBullish {
		t.Fatalf("expected bullish bias, got %s", snap.Bias)
	}

	// Tap of the tolerance band (100 +/- 0.1) fires the entry.
	res = e.OnBar(bar("AAPL", vt(12, 9, 41), 100.4, 100.4, 100.05, 100.2))
	if len(res.Alerts) != 1 {
		t.Fatalf("expected entry alert, got %d alerts", len(res.Alerts))
	}
	a = res.Alerts[0]
	if a.Kind != models.AlertEntry {
		t.Fatalf("expected entry, got %s", a.Kind)
	}
	if a.ID == "" {
		t.Fatalf("entry alert must carry an id")
	}

	snap = e.Snapshot()
	if snap.LiveOutcomes != 1 {
		t.Fatalf("expected one live outcome session, got %d", snap.LiveOutcomes)
	}
	if len(snap.Forming) != 0 {
		t.Fatalf("forming candidate should clear after entry")
	}
}

func TestEngineIgnoresInvalidBar(t *testing.T) {
	e := New(testParams())
	res := e.OnBar(&models.Bar{Symbol: "bad sym", Timestamp: vt(12, 9, 30)})
	if len(res.Alerts) != 0 || len(res.Outcomes) != 0 {
		t.Fatalf("invalid bar must produce nothing")
	}
}

func TestEngineBenchmarkNeverSignals(t *testing.T) {
	p := testParams()
	p.WatchSet = []string{"SPY"}
	e := New(p)

	e.OnBar(bar("SPY", vt(12, 8, 0), 498, 500, 495, 498))
	for min := 30; min <= 50; min += 5 {
		e.OnBar(bar("SPY", vt(12, 9, min), 500, 502, 499, 501))
	}
	res := e.OnBar(bar("SPY", vt(12, 9, 55), 501, 503, 500, 502))
	if len(res.Alerts) != 0 {
		t.Fatalf("benchmark symbols must not emit alerts, got %+v", res.Alerts)
	}
}

func TestEngineSetParamsRebuildsOnTimeframeChange(t *testing.T) {
	e := New(testParams())
	e.OnBar(bar("AAPL", vt(12, 9, 30), 100, 101, 99, 100.5))

	p := e.Params()
	p.TimeframeMin = 15
	e.SetParams(p)

	if got := e.Params().TimeframeMin; got != 15 {
		t.Fatalf("expected timeframe 15, got %d", got)
	}
	// Old 5m aggregation buffers are gone; a fresh bar starts a 15m bucket
	// without completing anything from before the switch.
	res := e.OnBar(bar("AAPL", vt(12, 9, 45), 100, 101, 99, 100.5))
	if len(res.Alerts) != 0 {
		t.Fatalf("no alerts expected right after rebuild")
	}
}
