package backtest

import (
	"testing"

	"LevelWatch/internal/domain/models"
)

func levelByType(ls []Level, lt models.LevelType) (Level, bool) {
	for _, l := range ls {
		if l.Type == lt {
			return l, true
		}
	}
	return Level{}, false
}

func advance(tr *DailyLevelTracker, bars ...models.Bar) {
	for i := range bars {
		tr.Advance(&bars[i])
	}
}

func TestDailyLevelTrackerPriorDayFreeze(t *testing.T) {
	tr := NewDailyLevelTracker()
	advance(tr,
		mkBar(vtime(14, 8, 0), 95, 96, 94, 95),   // day 1 premarket
		mkBar(vtime(14, 10, 0), 98, 100, 90, 99), // day 1 regular
		mkBar(vtime(14, 16, 30), 96, 97, 93, 96), // day 1 after hours
	)

	ls := tr.Levels()
	if pmh, ok := levelByType(ls, models.LevelPMH); !ok || pmh.Price != 97 {
		t.Fatalf("day1 PMH: got %+v", ls)
	}
	if pml, ok := levelByType(ls, models.LevelPML); !ok || pml.Price != 93 {
		t.Fatalf("day1 PML: got %+v", ls)
	}
	if _, ok := levelByType(ls, models.LevelPDH); ok {
		t.Fatalf("day1 has no prior day, got %+v", ls)
	}

	advance(tr, mkBar(vtime(15, 10, 0), 101, 102, 100, 101)) // day 2 regular

	ls = tr.Levels()
	if pdh, ok := levelByType(ls, models.LevelPDH); !ok || pdh.Price != 100 {
		t.Fatalf("day2 PDH should freeze day1 regular high, got %+v", ls)
	}
	if pdl, ok := levelByType(ls, models.LevelPDL); !ok || pdl.Price != 90 {
		t.Fatalf("day2 PDL should freeze day1 regular low, got %+v", ls)
	}
	if _, ok := levelByType(ls, models.LevelPMH); ok {
		t.Fatalf("day2 had no extended bars, got %+v", ls)
	}
}

func TestDailyLevelTrackerMidDayReadIgnoresLaterBars(t *testing.T) {
	tr := NewDailyLevelTracker()
	advance(tr,
		mkBar(vtime(14, 4, 30), 101, 102, 100, 101), // premarket, low 100
		mkBar(vtime(14, 10, 0), 60, 61, 55, 56),     // regular sell-off
	)

	ls := tr.Levels()
	pml, ok := levelByType(ls, models.LevelPML)
	if !ok || pml.Price != 100 {
		t.Fatalf("morning PML must be the premarket low, got %+v", ls)
	}

	advance(tr, mkBar(vtime(14, 16, 5), 55, 56, 50, 51)) // after hours

	pml, ok = levelByType(tr.Levels(), models.LevelPML)
	if !ok || pml.Price != 50 {
		t.Fatalf("after-hours low joins PML only once advanced, got %+v", tr.Levels())
	}
}

func TestRepeatLevelsClusterAndRank(t *testing.T) {
	var bars []models.Bar
	for i := 0; i < 3; i++ {
		bars = append(bars, mkBar(vtime(14, 10, i), 99.5, 100, 99, 99.5))
	}
	bars = append(bars, mkBar(vtime(14, 10, 5), 104.5, 105, 104, 104.5))

	ls := RepeatLevels(bars, len(bars), 50, 0.002, 3, 10)
	if len(ls) != 2 {
		t.Fatalf("expected the two 3-touch clusters, got %+v", ls)
	}
	if ls[0].Touches != 3 || ls[1].Touches != 3 {
		t.Fatalf("unexpected touch counts %+v", ls)
	}
	if ls[0].Price != 100 && ls[0].Price != 99 {
		t.Fatalf("unexpected cluster center %v", ls[0].Price)
	}

	ls = RepeatLevels(bars, len(bars), 50, 0.002, 3, 1)
	if len(ls) != 1 {
		t.Fatalf("maxLevels not applied: %+v", ls)
	}
}

func TestRepeatLevelsNoLookahead(t *testing.T) {
	bars := []models.Bar{
		mkBar(vtime(14, 10, 0), 100, 100, 99, 100),
		mkBar(vtime(14, 10, 1), 100, 100, 99, 100),
		mkBar(vtime(14, 10, 2), 200, 200, 199, 200),
	}
	ls := RepeatLevels(bars, 2, 50, 0.002, 1, 10)
	for _, l := range ls {
		if l.Price > 150 {
			t.Fatalf("cluster used a future bar: %+v", l)
		}
	}
}

func TestRepeatLevelsLookbackBound(t *testing.T) {
	bars := []models.Bar{
		mkBar(vtime(14, 10, 0), 50, 50, 49, 50),
		mkBar(vtime(14, 10, 1), 100, 100, 99, 100),
		mkBar(vtime(14, 10, 2), 100, 100, 99, 100),
	}
	ls := RepeatLevels(bars, 3, 2, 0.002, 1, 10)
	for _, l := range ls {
		if l.Price < 60 {
			t.Fatalf("cluster used a bar outside the lookback: %+v", l)
		}
	}
}
