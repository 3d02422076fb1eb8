package engine

import (
	"testing"

	"LevelWatch/internal/domain/models"
)

func TestLevelTrackerPremarketExtremes(t *testing.T) {
	lt := NewLevelTracker()
	lt.Update(bar("AAPL", vt(12, 4, 30), 97, 98, 96, 97))
	lt.Update(bar("AAPL", vt(12, 8, 0), 97, 100, 95, 99))

	if v, ok := lt.Level(models.LevelPMH); !ok || v != 100 {
		t.Fatalf("PMH = %v ok=%v, want 100", v, ok)
	}
	if v, ok := lt.Level(models.LevelPML); !ok || v != 95 {
		t.Fatalf("PML = %v ok=%v, want 95", v, ok)
	}
	if _, ok := lt.Level(models.LevelPDH); ok {
		t.Fatalf("PDH must be unknown before a completed regular session")
	}
}

func TestLevelTrackerPriorDayFreeze(t *testing.T) {
	lt := NewLevelTracker()
	lt.Update(bar("AAPL", vt(12, 10, 0), 98, 102, 97, 100))
	lt.Update(bar("AAPL", vt(12, 15, 0), 100, 103, 99, 101))

	// Day rollover: regular extremes become PDH/PDL, extended resets.
	lt.Update(bar("AAPL", vt(13, 7, 0), 101, 104, 100, 103))

	if v, ok := lt.Level(models.LevelPDH); !ok || v != 103 {
		t.Fatalf("PDH = %v ok=%v, want 103", v, ok)
	}
	if v, ok := lt.Level(models.LevelPDL); !ok || v != 97 {
		t.Fatalf("PDL = %v ok=%v, want 97", v, ok)
	}
	if v, ok := lt.Level(models.LevelPMH); !ok || v != 104 {
		t.Fatalf("PMH = %v ok=%v, want today's 104", v, ok)
	}

	// Today's regular bars must not move the frozen prior-day levels.
	lt.Update(bar("AAPL", vt(13, 10, 0), 103, 110, 102, 109))
	if v, _ := lt.Level(models.LevelPDH); v != 103 {
		t.Fatalf("PDH moved to %v after freeze", v)
	}
}

func TestLevelTrackerAfterHoursExtendPremarketLevels(t *testing.T) {
	lt := NewLevelTracker()
	lt.Update(bar("AAPL", vt(12, 8, 0), 97, 100, 95, 99))
	lt.Update(bar("AAPL", vt(12, 17, 0), 99, 106, 94, 105))

	if v, _ := lt.Level(models.LevelPMH); v != 106 {
		t.Fatalf("extended high = %v, want 106", v)
	}
	if v, _ := lt.Level(models.LevelPML); v != 94 {
		t.Fatalf("extended low = %v, want 94", v)
	}
}
