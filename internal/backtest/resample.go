// Package backtest replays closed historical windows of 1-minute bars
// through a causally constrained breakout/retest strategy family. The
// package is pure: no I/O, no clock, no logging; identical inputs always
// produce identical trades.
package backtest

import (
	"time"

	"LevelWatch/internal/domain/models"
	"LevelWatch/internal/domain/repository"
)

// Resample folds 1-minute bars for one symbol into tf buckets by timestamp
// truncation. Daily and weekly timeframes bucket by venue day/week using
// regular-session bars only, so a daily bar never mixes two sessions.
// Input must be sorted by timestamp; output is sorted.
func Resample(bars []models.Bar, tf repository.Timeframe) []models.Bar {
	if tf == repository.TF1m || len(bars) == 0 {
		out := make([]models.Bar, len(bars))
		copy(out, bars)
		return out
	}

	sessionOnly := tf == repository.TF1d || tf == repository.TF1w

	var out []models.Bar
	var curKey string
	for i := range bars {
		b := &bars[i]
		if sessionOnly && models.SessionFor(b.Timestamp) != models.SessionRegular {
			continue
		}
		key, bucket := bucketOf(b.Timestamp, tf)
		if curKey != key {
			nb := *b
			nb.Timestamp = bucket
			out = append(out, nb)
			curKey = key
			continue
		}
		cur := &out[len(out)-1]
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return out
}

// bucketOf returns a stable bucket key and the bucket's opening timestamp.
func bucketOf(t time.Time, tf repository.Timeframe) (string, time.Time) {
	switch tf {
	case repository.TF1d:
		key := models.DayKey(t)
		return key, models.RegularOpen(t)
	case repository.TF1w:
		lt := t.In(models.VenueTZ())
		// roll back to Monday's session open
		back := (int(lt.Weekday()) + 6) % 7
		monday := lt.AddDate(0, 0, -back)
		open := time.Date(monday.Year(), monday.Month(), monday.Day(), 9, 30, 0, 0, models.VenueTZ())
		return open.Format("2006-01-02"), open
	default:
		bucket := t.Truncate(tf.Duration())
		return bucket.UTC().Format(time.RFC3339), bucket
	}
}
