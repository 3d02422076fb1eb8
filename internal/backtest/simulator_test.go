package backtest

import (
	"testing"

	"LevelWatch/internal/domain/models"
	"LevelWatch/internal/domain/repository"
)

func breakCfg() Config {
	cfg := DefaultConfig()
	cfg.Timeframe = repository.TF5m
	cfg.LevelSource = models.LevelSourceDaily
	cfg.EntryMode = models.EntryBreak
	return cfg
}

// priorDay pins PDH=100 and PDL=90 for the following venue day.
func priorDay() models.Bar {
	return mkBar(vtime(14, 10, 0), 95, 100, 90, 95)
}

func TestSimulateBreakFillsNextBarOpen(t *testing.T) {
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 9, 30), 98, 99, 97, 98.5),
		mkBar(vtime(15, 9, 35), 99, 101, 98.5, 100.8), // close crosses PDH 100
		mkBar(vtime(15, 9, 40), 101, 102, 100.5, 101.5),
		mkBar(vtime(15, 9, 45), 101.5, 103.5, 101, 103.4),
	}
	trades := Simulate("AAPL", bars, breakCfg())
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if !tr.EntryTime.Equal(vtime(15, 9, 40)) {
		t.Fatalf("fill must be the bar after the signal bar, got %v", tr.EntryTime)
	}
	if tr.EntryPrice != 101 {
		t.Fatalf("fill must be at the next bar's open, got %v", tr.EntryPrice)
	}
	if tr.Direction != models.DirectionLong {
		t.Fatalf("expected long, got %v", tr.Direction)
	}
	if tr.StopPrice != 100*(1-0.001) {
		t.Fatalf("stop should be padded beyond the level, got %v", tr.StopPrice)
	}
	// entry 101, risk 1.1, target 103.2, hit on the 09:45 bar
	if tr.ExitReason != models.ExitTarget || tr.ExitPrice != tr.TargetPrice {
		t.Fatalf("expected target exit, got %+v", tr)
	}
	if tr.RMultiple < 1.99 || tr.RMultiple > 2.01 {
		t.Fatalf("target exit should be ~2R, got %v", tr.RMultiple)
	}
}

func TestSimulateStopFirstTieBreak(t *testing.T) {
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 9, 30), 98, 99, 97, 98.5),
		mkBar(vtime(15, 9, 35), 99, 101, 98.5, 100.5),
		mkBar(vtime(15, 9, 40), 101, 104, 99, 100), // spans both stop and target
	}
	trades := Simulate("AAPL", bars, breakCfg())
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.ExitReason != models.ExitStop {
		t.Fatalf("bar hitting both stop and target must resolve STOP, got %v", tr.ExitReason)
	}
	if tr.ExitPrice != tr.StopPrice {
		t.Fatalf("stop exit at stop price, got %v", tr.ExitPrice)
	}
}

func TestSimulateOneTradePerLevelPerDay(t *testing.T) {
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 9, 30), 98, 99, 97, 98.5),
		mkBar(vtime(15, 9, 35), 99, 101, 98.5, 100.8),
		mkBar(vtime(15, 9, 40), 101, 104, 99, 100), // stop-out
		// second cross of the same level later the same day
		mkBar(vtime(15, 14, 0), 100, 100.5, 99, 99.5),
		mkBar(vtime(15, 14, 5), 99.5, 101, 99, 100.7),
		mkBar(vtime(15, 14, 10), 100.9, 101.5, 100.5, 101),
		mkBar(vtime(15, 14, 15), 101, 101.5, 100.5, 101),
	}
	trades := Simulate("AAPL", bars, breakCfg())
	seen := make(map[string]int)
	for _, tr := range trades {
		seen[tr.LevelID+"|"+models.DayKey(tr.EntryTime)]++
	}
	for k, n := range seen {
		if n > 1 {
			t.Fatalf("level traded %d times in one day: %s", n, k)
		}
	}
	if len(trades) != 1 {
		t.Fatalf("expected the re-cross to be suppressed, got %d trades", len(trades))
	}
}

func TestSimulateSingleOpenTrade(t *testing.T) {
	// PDH 100 and PDL 90 can both signal; intervals must never overlap
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 9, 30), 98, 99, 91, 98.5),
		mkBar(vtime(15, 9, 35), 99, 101, 98.5, 100.8),
		mkBar(vtime(15, 9, 40), 101, 102, 92, 93),
		mkBar(vtime(15, 9, 45), 93, 94, 88, 89.5), // crosses PDL 90 down
		mkBar(vtime(15, 9, 50), 89, 90, 85, 86),
		mkBar(vtime(15, 9, 55), 86, 87, 84, 85),
	}
	trades := Simulate("AAPL", bars, breakCfg())
	for i := 1; i < len(trades); i++ {
		if trades[i].EntryTime.Before(trades[i-1].ExitTime) {
			t.Fatalf("overlapping trades: %+v then %+v", trades[i-1], trades[i])
		}
	}
}

func TestSimulateEntryBlackout(t *testing.T) {
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 15, 20), 98, 99, 97, 98.5),
		mkBar(vtime(15, 15, 25), 99, 101, 98.5, 100.8), // signal, but fill would be 15:30
		mkBar(vtime(15, 15, 30), 101, 102, 100.5, 101.5),
		mkBar(vtime(15, 15, 35), 101.5, 103, 101, 102.5),
	}
	trades := Simulate("AAPL", bars, breakCfg())
	if len(trades) != 0 {
		t.Fatalf("no entries within 30 minutes of the close, got %+v", trades)
	}
}

func TestSimulateForceCloseBeforeSessionEnd(t *testing.T) {
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 15, 10), 98, 99, 97, 98.5),
		mkBar(vtime(15, 15, 15), 99, 101, 98.5, 100.8),
		mkBar(vtime(15, 15, 20), 101, 102, 100.5, 101.5),
		mkBar(vtime(15, 15, 25), 101.5, 102, 100.8, 101),
		mkBar(vtime(15, 15, 30), 101, 102, 100.8, 101.2),
		mkBar(vtime(15, 15, 35), 101.2, 102, 100.8, 101),
		mkBar(vtime(15, 15, 40), 101, 102, 100.8, 101.3),
		mkBar(vtime(15, 15, 45), 101.3, 102, 100.8, 101.1),
		mkBar(vtime(15, 15, 50), 101.1, 102, 100.8, 101.4),
		mkBar(vtime(15, 15, 55), 101.2, 102.5, 100.8, 101.6),
	}
	trades := Simulate("AAPL", bars, breakCfg())
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.ExitReason != models.ExitEOD {
		t.Fatalf("expected EOD flatten, got %v", tr.ExitReason)
	}
	if !tr.ExitTime.Equal(vtime(15, 15, 55)) || tr.ExitPrice != 101.2 {
		t.Fatalf("flatten at the 15:55 bar open, got %v @ %v", tr.ExitPrice, tr.ExitTime)
	}
}

func TestSimulateRetestMode(t *testing.T) {
	cfg := breakCfg()
	cfg.EntryMode = models.EntryRetest
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 9, 30), 101, 102, 100.5, 101.5),
		mkBar(vtime(15, 9, 35), 101, 101.5, 99.7, 100.6), // touches 100, closes above
		mkBar(vtime(15, 9, 40), 100.8, 101.5, 100.5, 101),
		mkBar(vtime(15, 9, 45), 101, 103.5, 100.9, 103.4),
	}
	trades := Simulate("AAPL", bars, cfg)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Direction != models.DirectionLong || tr.StopPrice != 99.7 {
		t.Fatalf("retest stop must be the touch bar extreme, got %+v", tr)
	}
	if tr.EntryPrice != 100.8 || !tr.EntryTime.Equal(vtime(15, 9, 40)) {
		t.Fatalf("fill at next bar open, got %+v", tr)
	}
}

func TestSimulateBreakRetestMode(t *testing.T) {
	cfg := breakCfg()
	cfg.EntryMode = models.EntryBreakRetest
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 9, 30), 98, 99, 97, 99),
		mkBar(vtime(15, 9, 35), 99, 101, 98.5, 100.9), // break
		mkBar(vtime(15, 9, 40), 101, 101.5, 100.3, 101),
		mkBar(vtime(15, 9, 45), 101, 101.2, 99.6, 100.4), // retest + confirm
		mkBar(vtime(15, 9, 50), 100.7, 101.5, 100.5, 101),
		mkBar(vtime(15, 9, 55), 101, 103.5, 100.9, 103),
	}
	trades := Simulate("AAPL", bars, cfg)
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.StopPrice != 99.6 {
		t.Fatalf("stop must be the retest extreme, got %v", tr.StopPrice)
	}
	if tr.EntryPrice != 100.7 || !tr.EntryTime.Equal(vtime(15, 9, 50)) {
		t.Fatalf("fill at the bar after confirmation, got %+v", tr)
	}
}

func TestSimulateBreakRetestInvalidation(t *testing.T) {
	cfg := breakCfg()
	cfg.EntryMode = models.EntryBreakRetest
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 9, 30), 98, 99, 97, 99),
		mkBar(vtime(15, 9, 35), 99, 101, 98.5, 100.9), // break
		mkBar(vtime(15, 9, 40), 100, 100.5, 98.5, 99), // close back through, reset
		mkBar(vtime(15, 9, 45), 99, 100.5, 98.9, 99.4),
		mkBar(vtime(15, 9, 50), 99.4, 99.9, 99, 99.5),
	}
	trades := Simulate("AAPL", bars, cfg)
	if len(trades) != 0 {
		t.Fatalf("invalidated setup must not trade, got %+v", trades)
	}
}

func TestSimulateSkipsNonPositiveRisk(t *testing.T) {
	bars := []models.Bar{
		priorDay(),
		mkBar(vtime(15, 9, 30), 98, 99, 97, 98.5),
		mkBar(vtime(15, 9, 35), 99, 101, 98.5, 100.8),
		// gap down: fill open below the stop makes risk <= 0
		mkBar(vtime(15, 9, 40), 99.5, 100.2, 99, 100),
		mkBar(vtime(15, 9, 45), 100, 100.5, 99.8, 100.3),
	}
	trades := Simulate("AAPL", bars, breakCfg())
	if len(trades) != 0 {
		t.Fatalf("non-positive risk must not trade, got %+v", trades)
	}
}

func TestSimulateDailyLevelsSeeOnlyPriorBars(t *testing.T) {
	bars := []models.Bar{
		mkBar(vtime(14, 4, 30), 101, 102, 100, 101), // premarket, low 100
		mkBar(vtime(14, 10, 0), 60, 61, 55, 56),
		mkBar(vtime(14, 10, 5), 56, 57, 48, 49),
		mkBar(vtime(14, 10, 10), 48.5, 49, 47, 48),
		mkBar(vtime(14, 16, 5), 55, 56, 50, 51), // after hours drags PML to 50
	}
	trades := Simulate("AAPL", bars, breakCfg())
	for _, tr := range trades {
		if tr.LevelPrice == 50 {
			t.Fatalf("morning entry against an after-hours extreme: %+v", tr)
		}
	}
	// the only level known before the sell-off is the premarket low
	if len(trades) != 1 || trades[0].LevelPrice != 100 {
		t.Fatalf("expected one short against the premarket low, got %+v", trades)
	}
	if trades[0].Direction != models.DirectionShort {
		t.Fatalf("expected short, got %+v", trades[0])
	}
}
