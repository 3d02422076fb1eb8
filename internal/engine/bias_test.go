package engine

import (
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
)

// aboveBar closes above its own typical price, belowBar below.
func aboveBar(sym string, ts time.Time) *models.Bar { return bar(sym, ts, 9, 10, 8, 10) }
func belowBar(sym string, ts time.Time) *models.Bar { return bar(sym, ts, 9, 10, 8, 8) }

func TestBiasNeutralWithoutData(t *testing.T) {
	c := NewBiasClassifier([]string{"SPY", "QQQ"}, nil, 0.6, 0.4)
	if got := c.Bias(); got != models.BiasNeutral {
		t.Fatalf("empty classifier bias = %s, want neutral", got)
	}
}

func TestBiasBenchmarksMustAgree(t *testing.T) {
	ts := vt(12, 10, 0)
	c := NewBiasClassifier([]string{"SPY", "QQQ"}, nil, 0.6, 0.4)
	c.Update(aboveBar("SPY", ts))
	c.Update(aboveBar("QQQ", ts))
	if got := c.Bias(); got != models.BiasBullish {
		t.Fatalf("agreeing benchmarks bias = %s, want bullish", got)
	}

	c.Update(belowBar("QQQ", ts.Add(time.Minute)))
	// QQQ session VWAP now straddles; force it clearly below.
	c.Update(belowBar("QQQ", ts.Add(2*time.Minute)))
	c.Update(belowBar("QQQ", ts.Add(3*time.Minute)))
	if got := c.Bias(); got != models.BiasNeutral {
		t.Fatalf("disagreeing benchmarks bias = %s, want neutral", got)
	}
}

func TestBiasBreadthGate(t *testing.T) {
	ts := vt(12, 10, 0)
	watch := []string{"AAPL", "MSFT", "NVDA", "AMD"}
	c := NewBiasClassifier([]string{"SPY"}, watch, 0.6, 0.4)
	c.Update(aboveBar("SPY", ts))

	// 3 of 4 above: breadth 0.75 >= 0.6, bullish confirmed.
	c.Update(aboveBar("AAPL", ts))
	c.Update(aboveBar("MSFT", ts))
	c.Update(aboveBar("NVDA", ts))
	c.Update(belowBar("AMD", ts))
	if got := c.Bias(); got != models.BiasBullish {
		t.Fatalf("bias = %s, want bullish at 75%% breadth", got)
	}

	frac, n := c.Breadth()
	if n != 4 || frac != 0.75 {
		t.Fatalf("breadth = %v over %d, want 0.75 over 4", frac, n)
	}
}

func TestBiasBreadthBlocksBenchmarks(t *testing.T) {
	ts := vt(12, 10, 0)
	watch := []string{"AAPL", "MSFT", "NVDA", "AMD"}
	c := NewBiasClassifier([]string{"SPY"}, watch, 0.6, 0.4)
	c.Update(aboveBar("SPY", ts))

	// Only 1 of 4 above: benchmarks say bullish, breadth refuses.
	c.Update(aboveBar("AAPL", ts))
	c.Update(belowBar("MSFT", ts))
	c.Update(belowBar("NVDA", ts))
	c.Update(belowBar("AMD", ts))
	if got := c.Bias(); got != models.BiasNeutral {
		t.Fatalf("bias = %s, want neutral when breadth disagrees", got)
	}
}

func TestBiasFewMembersFallBackToBenchmarks(t *testing.T) {
	ts := vt(12, 10, 0)
	c := NewBiasClassifier([]string{"SPY"}, []string{"AAPL"}, 0.6, 0.4)
	c.Update(belowBar("SPY", ts))
	c.Update(aboveBar("AAPL", ts))
	if got := c.Bias(); got != models.BiasBearish {
		t.Fatalf("bias = %s, want bearish via benchmark fallback", got)
	}
}

func TestBenchmarkSides(t *testing.T) {
	ts := vt(12, 10, 0)
	c := NewBiasClassifier([]string{"SPY", "QQQ"}, nil, 0.6, 0.4)
	c.Update(aboveBar("SPY", ts))
	sides := c.BenchmarkSides()
	if sides["SPY"] != "above" || sides["QQQ"] != "flat" {
		t.Fatalf("unexpected sides %v", sides)
	}
}
