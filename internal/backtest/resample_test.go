package backtest

import (
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
	"LevelWatch/internal/domain/repository"
)

func vtime(day, hour, min int) time.Time {
	return time.Date(2024, 3, day, hour, min, 0, 0, models.VenueTZ())
}

func mkBar(ts time.Time, o, h, l, c float64) models.Bar {
	return models.Bar{Symbol: "AAPL", Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

func TestResampleFiveMinute(t *testing.T) {
	bars := []models.Bar{
		mkBar(vtime(14, 9, 31), 100, 101, 99, 100.5),
		mkBar(vtime(14, 9, 33), 100.5, 102, 100, 101.5),
		mkBar(vtime(14, 9, 36), 101.5, 103, 101, 102),
	}
	out := Resample(bars, repository.TF5m)
	if len(out) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out))
	}
	b := out[0]
	if b.Open != 100 || b.High != 102 || b.Low != 99 || b.Close != 101.5 {
		t.Fatalf("bad aggregation %+v", b)
	}
	if b.Volume != 2000 {
		t.Fatalf("expected summed volume, got %v", b.Volume)
	}
	want := vtime(14, 9, 30)
	if !b.Timestamp.Equal(want) {
		t.Fatalf("expected bucket start %v, got %v", want, b.Timestamp)
	}
}

func TestResampleOneMinuteCopies(t *testing.T) {
	bars := []models.Bar{mkBar(vtime(14, 9, 31), 1, 2, 0.5, 1.5)}
	out := Resample(bars, repository.TF1m)
	if len(out) != 1 || !out[0].Timestamp.Equal(bars[0].Timestamp) {
		t.Fatalf("expected passthrough, got %+v", out)
	}
	out[0].Close = 99
	if bars[0].Close == 99 {
		t.Fatalf("resample must not alias input")
	}
}

func TestResampleDailySessionOnly(t *testing.T) {
	bars := []models.Bar{
		mkBar(vtime(14, 8, 0), 95, 96, 94, 95),    // premarket, dropped
		mkBar(vtime(14, 9, 30), 100, 101, 99, 100.5),
		mkBar(vtime(14, 15, 59), 100.5, 103, 98, 102),
		mkBar(vtime(14, 16, 30), 90, 91, 89, 90), // after hours, dropped
		mkBar(vtime(15, 9, 30), 102, 104, 101, 103),
	}
	out := Resample(bars, repository.TF1d)
	if len(out) != 2 {
		t.Fatalf("expected 2 daily bars, got %d", len(out))
	}
	d1 := out[0]
	if d1.Open != 100 || d1.High != 103 || d1.Low != 98 || d1.Close != 102 {
		t.Fatalf("daily bar mixed sessions: %+v", d1)
	}
	if !d1.Timestamp.Equal(vtime(14, 9, 30)) {
		t.Fatalf("daily bar should open at 09:30, got %v", d1.Timestamp)
	}
}

func TestResampleWeeklyBucketsByMonday(t *testing.T) {
	// Mar 14-15 2024 are Thu/Fri, Mar 18 is the next Monday
	bars := []models.Bar{
		mkBar(vtime(14, 10, 0), 100, 101, 99, 100),
		mkBar(vtime(15, 10, 0), 100, 105, 98, 104),
		mkBar(vtime(18, 10, 0), 104, 106, 103, 105),
	}
	out := Resample(bars, repository.TF1w)
	if len(out) != 2 {
		t.Fatalf("expected 2 weekly bars, got %d", len(out))
	}
	if out[0].High != 105 || out[0].Low != 98 {
		t.Fatalf("weekly bar did not fold Thu+Fri: %+v", out[0])
	}
	if !out[1].Timestamp.Equal(vtime(18, 9, 30)) {
		t.Fatalf("second week should open Monday 09:30, got %v", out[1].Timestamp)
	}
}
