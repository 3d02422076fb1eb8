package engine

import (
	"testing"

	"LevelWatch/internal/domain/models"
)

func closes(sym string, vals ...float64) []models.Bar {
	out := make([]models.Bar, len(vals))
	for i, c := range vals {
		out[i] = *bar(sym, vt(12, 10, i), c, c, c, c)
	}
	return out
}

func TestClassifyStrengthStrong(t *testing.T) {
	sym := closes("AAPL", 100, 102)
	bench := closes("SPY", 500, 505)
	// +2% vs +1%
	if got := ClassifyStrength(models.BiasBullish, sym, bench, 1); got != models.StrengthStrong {
		t.Fatalf("strength = %s, want strong", got)
	}
	if got := ClassifyStrength(models.BiasBearish, sym, bench, 1); got != models.StrengthNone {
		t.Fatalf("outperformer under bearish bias = %s, want none", got)
	}
}

func TestClassifyStrengthWeak(t *testing.T) {
	sym := closes("AAPL", 100, 97)
	bench := closes("SPY", 500, 495)
	// -3% vs -1%
	if got := ClassifyStrength(models.BiasBearish, sym, bench, 1); got != models.StrengthWeak {
		t.Fatalf("strength = %s, want weak", got)
	}
}

func TestClassifyStrengthNeedsHistory(t *testing.T) {
	sym := closes("AAPL", 100, 102)
	bench := closes("SPY", 500, 505)
	if got := ClassifyStrength(models.BiasBullish, sym, bench, 3); got != models.StrengthNone {
		t.Fatalf("short history strength = %s, want none", got)
	}
	if got := ClassifyStrength(models.BiasNeutral, sym, bench, 1); got != models.StrengthNone {
		t.Fatalf("neutral bias strength = %s, want none", got)
	}
}
