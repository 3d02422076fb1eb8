package engine

import (
	"time"

	"LevelWatch/internal/domain/models"
)

// maxCompleted bounds the completed-bar history kept per symbol; relative
// strength only needs windowBars+1.
const maxCompleted = 64

// Aggregator folds 1-minute bars into fixed-width timeframe bars for one
// symbol. Buckets are truncations of the bar timestamp; a bucket completes
// when a bar for a later bucket arrives.
type Aggregator struct {
	width  time.Duration
	bucket time.Time
	cur    *models.Bar
	done   []models.Bar
}

func NewAggregator(timeframeMin int) *Aggregator {
	return &Aggregator{width: time.Duration(timeframeMin) * time.Minute}
}

// Add feeds one 1-minute bar and returns the completed aggregated bar when
// the bucket rolls, else nil.
func (a *Aggregator) Add(b *models.Bar) *models.Bar {
	bk := b.Timestamp.Truncate(a.width)

	var completed *models.Bar
	if a.cur != nil && bk.After(a.bucket) {
		c := *a.cur
		a.done = append(a.done, c)
		if len(a.done) > maxCompleted {
			a.done = a.done[len(a.done)-maxCompleted:]
		}
		completed = &c
		a.cur = nil
	}

	if a.cur == nil {
		cp := *b
		cp.Timestamp = bk
		a.cur = &cp
		a.bucket = bk
		return completed
	}

	// late or duplicate minutes for an older bucket are folded into the
	// current bar rather than reordered
	if b.High > a.cur.High {
		a.cur.High = b.High
	}
	if b.Low < a.cur.Low {
		a.cur.Low = b.Low
	}
	a.cur.Close = b.Close
	a.cur.Volume += b.Volume
	return completed
}

// Completed returns the completed bars, oldest first.
func (a *Aggregator) Completed() []models.Bar { return a.done }
