package engine

import (
	"math"
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
)

func entryAlert(id string, ts time.Time, entry, stop float64, dir models.Direction) *models.Alert {
	return &models.Alert{
		ID:        id,
		Timestamp: ts,
		Symbol:    "AAPL",
		Kind:      models.AlertEntry,
		Direction: dir,
		StopLevel: stop,
		Close:     entry,
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestOutcomeTrackerIgnoresNonEntry(t *testing.T) {
	tr := NewOutcomeTracker()
	tr.Start(&models.Alert{ID: "x", Kind: models.AlertForming, Symbol: "AAPL"})
	if tr.Live() != 0 {
		t.Fatalf("forming alert must not open a session")
	}
}

func TestOutcomeExcursionsAndCheckpoints(t *testing.T) {
	tr := NewOutcomeTracker()
	t0 := vt(12, 10, 0)
	tr.Start(entryAlert("a1", t0, 100, 99.5, models.DirectionLong))

	tr.OnMinuteBar(bar("AAPL", t0.Add(time.Minute), 100, 101, 99.8, 100.6))
	tr.OnMinuteBar(bar("AAPL", t0.Add(3*time.Minute), 100.6, 100.8, 100.2, 100.4))

	// Still live after 3 minutes.
	if tr.Live() != 1 {
		t.Fatalf("expected live session")
	}

	// Completes at the tracking window.
	tr.OnMinuteBar(bar("AAPL", t0.Add(60*time.Minute), 100.4, 100.5, 100.3, 100.4))
	outs := tr.FinalizeReady()
	if len(outs) != 1 {
		t.Fatalf("expected one finalized outcome, got %d", len(outs))
	}
	o := outs[0]
	if o.StoppedOut {
		t.Fatalf("session completed, not stopped")
	}
	if !near(o.MaxFavorable, 1) {
		t.Fatalf("MFE = %v, want 1 (high 101 vs entry 100)", o.MaxFavorable)
	}
	if !near(o.MaxAdverse, 0.2) {
		t.Fatalf("MAE = %v, want 0.2 (low 99.8 vs entry 100)", o.MaxAdverse)
	}
	if o.TimeToMFE != time.Minute {
		t.Fatalf("time to MFE = %v, want 1m", o.TimeToMFE)
	}
	if got := o.CheckpointPct[1]; !near(got, 0.6) {
		t.Fatalf("1m checkpoint = %v, want +0.6%%", got)
	}
	if got := o.CheckpointPct[3]; !near(got, 0.4) {
		t.Fatalf("3m checkpoint = %v, want +0.4%%", got)
	}
	if tr.Live() != 0 {
		t.Fatalf("finalized session must leave the live index")
	}
}

func TestOutcomeStopOnAggClose(t *testing.T) {
	tr := NewOutcomeTracker()
	t0 := vt(12, 10, 0)
	tr.Start(entryAlert("a1", t0, 100, 99.5, models.DirectionLong))

	tr.OnAggClose("AAPL", 99.8, t0.Add(5*time.Minute))
	if outs := tr.FinalizeReady(); len(outs) != 0 {
		t.Fatalf("close above stop must not stop the session")
	}

	tr.OnAggClose("AAPL", 99.4, t0.Add(10*time.Minute))
	outs := tr.FinalizeReady()
	if len(outs) != 1 {
		t.Fatalf("expected stopped outcome")
	}
	o := outs[0]
	if !o.StoppedOut || o.StopPrice != 99.4 || o.BarsToStop != 2 {
		t.Fatalf("unexpected stop record %+v", o)
	}
	if !near(o.StopPct, -0.6) {
		t.Fatalf("stop pct = %v, want -0.6", o.StopPct)
	}
}

func TestOutcomeShortDirectionSigns(t *testing.T) {
	tr := NewOutcomeTracker()
	t0 := vt(12, 10, 0)
	tr.Start(entryAlert("s1", t0, 100, 100.5, models.DirectionShort))

	// Price drops: favorable for a short.
	tr.OnMinuteBar(bar("AAPL", t0.Add(time.Minute), 100, 100.3, 99, 99.2))
	tr.OnMinuteBar(bar("AAPL", t0.Add(60*time.Minute), 99.2, 99.3, 99.1, 99.2))
	outs := tr.FinalizeReady()
	if len(outs) != 1 {
		t.Fatalf("expected one outcome")
	}
	o := outs[0]
	if !near(o.MaxFavorable, 1) {
		t.Fatalf("short MFE = %v, want 1 (low 99)", o.MaxFavorable)
	}
	if !near(o.MaxAdverse, 0.3) {
		t.Fatalf("short MAE = %v, want 0.3 (high 100.3)", o.MaxAdverse)
	}
	if got := o.CheckpointPct[1]; !near(got, 0.8) {
		t.Fatalf("short 1m checkpoint = %v, want +0.8%%", got)
	}
}

func TestOutcomeFinalizeLiveReturnsNil(t *testing.T) {
	tr := NewOutcomeTracker()
	tr.Start(entryAlert("a1", vt(12, 10, 0), 100, 99.5, models.DirectionLong))
	if o := tr.Finalize("a1"); o != nil {
		t.Fatalf("live session must not finalize")
	}
	if o := tr.Finalize("missing"); o != nil {
		t.Fatalf("unknown id must return nil")
	}
}
