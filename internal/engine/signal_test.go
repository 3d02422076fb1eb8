package engine

import (
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
)

// trackerWithPMH returns a tracker whose premarket high is 100 and low 95.
func trackerWithPMH() *LevelTracker {
	lt := NewLevelTracker()
	lt.Update(bar("AAPL", vt(12, 8, 0), 98, 100, 95, 98))
	return lt
}

func breakLong(t *testing.T, st *SignalState, tap *TapState, lt *LevelTracker, p Params) *models.Alert {
	t.Helper()
	a := evalAggregated("AAPL", st, tap, models.BiasBullish, models.StrengthStrong,
		bar("AAPL", vt(12, 9, 35), 100.1, 100.7, 100, 100.6), lt, p)
	if a == nil || a.Kind != models.AlertForming {
		t.Fatalf("expected forming alert, got %+v", a)
	}
	return a
}

func TestSignalBreakRequiresQualification(t *testing.T) {
	p := testParams()
	lt := trackerWithPMH()
	st, tap := &SignalState{}, &TapState{}

	agg := bar("AAPL", vt(12, 9, 35), 100.1, 100.7, 100, 100.6)
	if a := evalAggregated("AAPL", st, tap, models.BiasBullish, models.StrengthNone, agg, lt, p); a != nil {
		t.Fatalf("no alert without strength, got %+v", a)
	}
	if a := evalAggregated("AAPL", st, tap, models.BiasNeutral, models.StrengthStrong, agg, lt, p); a != nil {
		t.Fatalf("no alert under neutral bias, got %+v", a)
	}
	if st.Kind != StateIdle {
		t.Fatalf("state must stay idle, got %s", st.Kind)
	}
}

func TestSignalBreakTransition(t *testing.T) {
	p := testParams()
	lt := trackerWithPMH()
	st, tap := &SignalState{}, &TapState{}

	a := breakLong(t, st, tap, lt, p)
	if a.LevelType != models.LevelPMH || a.LevelPrice != 100 {
		t.Fatalf("unexpected break level %+v", a)
	}
	if st.Kind != StateBroken || st.Direction != models.DirectionLong {
		t.Fatalf("unexpected state %+v", st)
	}
	if !tap.CanFire || tap.Tolerance != 100*p.RetestTolerancePct {
		t.Fatalf("unexpected tap %+v", tap)
	}
}

func TestSignalEntryOnRetestTap(t *testing.T) {
	p := testParams()
	lt := trackerWithPMH()
	st, tap := &SignalState{}, &TapState{}
	breakLong(t, st, tap, lt, p)

	// Minute bar dips into the band around 100.
	a := evalMinute("AAPL", st, tap, models.BiasBullish, models.StrengthStrong,
		bar("AAPL", vt(12, 9, 41), 100.4, 100.4, 100.05, 100.3), p)
	if a == nil || a.Kind != models.AlertEntry {
		t.Fatalf("expected entry alert, got %+v", a)
	}
	if st.Kind != StateCooldown {
		t.Fatalf("entry must start cooldown, got %s", st.Kind)
	}
	want := vt(12, 9, 41).Add(time.Duration(cooldownMult*p.TimeframeMin) * time.Minute)
	if !st.Until.Equal(want) {
		t.Fatalf("cooldown until %v, want %v", st.Until, want)
	}
}

func TestSignalTapIsOneShotUntilRearmed(t *testing.T) {
	p := testParams()
	lt := trackerWithPMH()
	st, tap := &SignalState{}, &TapState{}
	breakLong(t, st, tap, lt, p)
	tap.CanFire = false

	touch := bar("AAPL", vt(12, 9, 41), 100.4, 100.4, 100.05, 100.3)
	if a := evalMinute("AAPL", st, tap, models.BiasBullish, models.StrengthStrong, touch, p); a != nil {
		t.Fatalf("disarmed tap must not fire, got %+v", a)
	}

	// Close beyond 2x tolerance re-arms.
	rearm := bar("AAPL", vt(12, 9, 42), 100.3, 100.5, 100.25, 100.3)
	evalMinute("AAPL", st, tap, models.BiasBullish, models.StrengthStrong, rearm, p)
	if !tap.CanFire {
		t.Fatalf("expected tap re-armed after close %v above band", rearm.Close)
	}
}

func TestSignalInvalidationAndCooldown(t *testing.T) {
	p := testParams()
	lt := trackerWithPMH()
	st, tap := &SignalState{}, &TapState{}
	breakLong(t, st, tap, lt, p)

	// Close back below the level invalidates.
	a := evalAggregated("AAPL", st, tap, models.BiasBullish, models.StrengthStrong,
		bar("AAPL", vt(12, 9, 40), 100.4, 100.5, 99.5, 99.8), lt, p)
	if a == nil || a.Kind != models.AlertInvalidation {
		t.Fatalf("expected invalidation, got %+v", a)
	}
	if st.Kind != StateCooldown {
		t.Fatalf("expected cooldown, got %s", st.Kind)
	}

	// Inside cooldown nothing fires, even for a fresh break.
	if a := evalAggregated("AAPL", st, tap, models.BiasBullish, models.StrengthStrong,
		bar("AAPL", vt(12, 9, 45), 100.2, 100.8, 100.1, 100.7), lt, p); a != nil {
		t.Fatalf("cooldown must swallow signals, got %+v", a)
	}

	// After cooldown expires the machine re-enters idle and can break again.
	a = evalAggregated("AAPL", st, tap, models.BiasBullish, models.StrengthStrong,
		bar("AAPL", vt(12, 9, 55), 100.2, 100.8, 100.1, 100.7), lt, p)
	if a == nil || a.Kind != models.AlertForming {
		t.Fatalf("expected new break after cooldown, got %+v", a)
	}
}

func TestSignalInvalidationOnLostQualification(t *testing.T) {
	p := testParams()
	lt := trackerWithPMH()
	st, tap := &SignalState{}, &TapState{}
	breakLong(t, st, tap, lt, p)

	a := evalAggregated("AAPL", st, tap, models.BiasNeutral, models.StrengthStrong,
		bar("AAPL", vt(12, 9, 40), 100.6, 100.9, 100.5, 100.8), lt, p)
	if a == nil || a.Kind != models.AlertInvalidation {
		t.Fatalf("expected invalidation when bias flips, got %+v", a)
	}
}

func TestSignalShortBreaksPML(t *testing.T) {
	p := testParams()
	lt := trackerWithPMH()
	st, tap := &SignalState{}, &TapState{}

	a := evalAggregated("AAPL", st, tap, models.BiasBearish, models.StrengthWeak,
		bar("AAPL", vt(12, 9, 35), 95.2, 95.3, 94.5, 94.8), lt, p)
	if a == nil || a.Kind != models.AlertForming {
		t.Fatalf("expected short forming alert, got %+v", a)
	}
	if a.Direction != models.DirectionShort || a.LevelType != models.LevelPML || a.LevelPrice != 95 {
		t.Fatalf("unexpected short break %+v", a)
	}
}
