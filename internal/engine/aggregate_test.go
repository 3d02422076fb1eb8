package engine

import "testing"

func TestAggregatorCompletesOnBucketRoll(t *testing.T) {
	a := NewAggregator(5)

	if c := a.Add(bar("AAPL", vt(12, 9, 30), 100, 101, 99, 100.5)); c != nil {
		t.Fatalf("first bar must not complete a bucket")
	}
	if c := a.Add(bar("AAPL", vt(12, 9, 32), 100.5, 102, 100, 101)); c != nil {
		t.Fatalf("same-bucket bar must not complete")
	}

	c := a.Add(bar("AAPL", vt(12, 9, 35), 101, 101.5, 100.8, 101.2))
	if c == nil {
		t.Fatalf("next-bucket bar must complete the previous bucket")
	}
	if !c.Timestamp.Equal(vt(12, 9, 30)) {
		t.Fatalf("completed bucket timestamp %v, want 09:30", c.Timestamp)
	}
	if c.Open != 100 || c.High != 102 || c.Low != 99 || c.Close != 101 {
		t.Fatalf("unexpected OHLC %+v", c)
	}
	if c.Volume != 2000 {
		t.Fatalf("volume = %v, want summed 2000", c.Volume)
	}

	if got := a.Completed(); len(got) != 1 {
		t.Fatalf("completed history len = %d", len(got))
	}
}

func TestAggregatorFoldsLateMinutes(t *testing.T) {
	a := NewAggregator(5)
	a.Add(bar("AAPL", vt(12, 9, 35), 101, 101.5, 100.8, 101.2))
	// A straggler from the prior bucket folds into the current bar
	// instead of reordering history.
	if c := a.Add(bar("AAPL", vt(12, 9, 34), 100, 103, 100, 102)); c != nil {
		t.Fatalf("late bar must not complete a bucket")
	}
	c := a.Add(bar("AAPL", vt(12, 9, 40), 102, 102, 101, 101.5))
	if c == nil || c.High != 103 {
		t.Fatalf("late bar's high not folded: %+v", c)
	}
}
