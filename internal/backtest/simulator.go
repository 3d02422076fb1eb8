package backtest

import (
	"time"

	"LevelWatch/internal/domain/models"
	"LevelWatch/internal/domain/repository"
)

const (
	targetRiskMult  = 2.0
	entryBlackout   = 30 * time.Minute
	forceCloseAhead = 5 * time.Minute
)

// Config parameterizes a single simulation pass.
type Config struct {
	Timeframe          repository.Timeframe
	LevelSource        models.LevelSource
	EntryMode          models.EntryMode
	TolerancePct       float64
	RepeatLookback     int
	RepeatTolerancePct float64
	RepeatMinTouches   int
	RepeatMaxLevels    int
}

// DefaultConfig mirrors the live strategy defaults.
func DefaultConfig() Config {
	return Config{
		Timeframe:          repository.TF5m,
		LevelSource:        models.LevelSourceDaily,
		EntryMode:          models.EntryBreakRetest,
		TolerancePct:       0.001,
		RepeatLookback:     200,
		RepeatTolerancePct: 0.002,
		RepeatMinTouches:   3,
		RepeatMaxLevels:    5,
	}
}

type brPhase int

const (
	brIdle brPhase = iota
	brBroken
	brRetest
)

// brState is the per-level break/retest machine for BREAK_RETEST mode.
type brState struct {
	phase     brPhase
	direction models.Direction
	extreme   float64 // worst retest excursion, the stop on confirmation
}

// pendingEntry is a decision made on bar i that fills at bar i+1's open.
type pendingEntry struct {
	direction models.Direction
	levelID   string
	level     float64
	stop      float64
}

// Simulate replays the minute series for one symbol through the configured
// level source and entry mode and returns the resulting trades in entry
// order. Decisions on bar i only see bars with index <= i; fills are at
// bar i+1's open. At most one trade is open at a time, and each level id
// trades at most once per venue day.
func Simulate(symbol string, minuteBars []models.Bar, cfg Config) []models.SimTrade {
	bars := Resample(minuteBars, cfg.Timeframe)
	if len(bars) < 2 {
		return nil
	}

	intraday := cfg.Timeframe < repository.TF1d

	var (
		daily      *DailyLevelTracker
		minuteNext int
	)
	if cfg.LevelSource == models.LevelSourceDaily || cfg.LevelSource == models.LevelSourceBoth {
		daily = NewDailyLevelTracker()
	}
	useRepeat := cfg.LevelSource == models.LevelSourceRepeat || cfg.LevelSource == models.LevelSourceBoth

	var (
		trades     []models.SimTrade
		open       *models.SimTrade
		entryIdx   int
		pending    *pendingEntry
		brStates   = make(map[string]*brState)
		tradedDay  = make(map[string]bool) // levelID|dayKey
		lastDayKey string
	)

	closeTrade := func(i int, price float64, ts time.Time, reason models.ExitReason) {
		risk := open.EntryPrice - open.StopPrice
		if open.Direction == models.DirectionShort {
			risk = open.StopPrice - open.EntryPrice
		}
		open.ExitTime = ts
		open.ExitPrice = price
		open.ExitReason = reason
		open.BarsHeld = i - entryIdx
		if open.Direction == models.DirectionLong {
			open.RMultiple = (price - open.EntryPrice) / risk
		} else {
			open.RMultiple = (open.EntryPrice - price) / risk
		}
		trades = append(trades, *open)
		open = nil
	}

	for i := range bars {
		b := &bars[i]
		dayKey := models.DayKey(b.Timestamp)

		// gap across a venue day with a position still on: flatten at the
		// prior bar's close before anything else
		if intraday && open != nil && dayKey != lastDayKey && lastDayKey != "" {
			prev := &bars[i-1]
			closeTrade(i-1, prev.Close, prev.Timestamp, models.ExitEOD)
		}
		lastDayKey = dayKey

		// fill a decision carried over from the previous bar
		if pending != nil {
			if open == nil && !inEntryBlackout(b.Timestamp, intraday) {
				entry := b.Open
				risk := entry - pending.stop
				if pending.direction == models.DirectionShort {
					risk = pending.stop - entry
				}
				dedupe := pending.levelID + "|" + dayKey
				if risk > 0 && !tradedDay[dedupe] {
					tradedDay[dedupe] = true
					target := entry + targetRiskMult*risk
					if pending.direction == models.DirectionShort {
						target = entry - targetRiskMult*risk
					}
					open = &models.SimTrade{
						Symbol:      symbol,
						Direction:   pending.direction,
						LevelID:     pending.levelID,
						LevelPrice:  pending.level,
						EntryTime:   b.Timestamp,
						EntryPrice:  entry,
						StopPrice:   pending.stop,
						TargetPrice: target,
					}
					entryIdx = i
				}
			}
			pending = nil
		}

		// exits, stop checked before target within the same bar
		if open != nil {
			switch {
			case intraday && !b.Timestamp.Before(models.RegularClose(b.Timestamp).Add(-forceCloseAhead)):
				closeTrade(i, b.Open, b.Timestamp, models.ExitEOD)
			case open.Direction == models.DirectionLong && b.Low <= open.StopPrice:
				closeTrade(i, open.StopPrice, b.Timestamp, models.ExitStop)
			case open.Direction == models.DirectionShort && b.High >= open.StopPrice:
				closeTrade(i, open.StopPrice, b.Timestamp, models.ExitStop)
			case open.Direction == models.DirectionLong && b.High >= open.TargetPrice:
				closeTrade(i, open.TargetPrice, b.Timestamp, models.ExitTarget)
			case open.Direction == models.DirectionShort && b.Low <= open.TargetPrice:
				closeTrade(i, open.TargetPrice, b.Timestamp, models.ExitTarget)
			}
		}

		// decision pass: evaluate levels on the closed bar i
		if i == 0 {
			continue
		}
		// bring the session levels up to this bar's close; minute bars
		// past the bucket end stay unseen until their own bucket closes
		if daily != nil {
			end := bucketEnd(b.Timestamp, cfg.Timeframe)
			for minuteNext < len(minuteBars) && minuteBars[minuteNext].Timestamp.Before(end) {
				daily.Advance(&minuteBars[minuteNext])
				minuteNext++
			}
		}
		levels := levelsFor(bars, i, daily, useRepeat, cfg)
		for j := range levels {
			lv := &levels[j]
			var sig *pendingEntry
			switch cfg.EntryMode {
			case models.EntryBreak:
				sig = evalBreak(lv, &bars[i-1], b, cfg.TolerancePct)
			case models.EntryRetest:
				sig = evalRetest(lv, b)
			case models.EntryBreakRetest:
				st := brStates[lv.ID]
				if st == nil {
					st = &brState{}
					brStates[lv.ID] = st
				}
				sig = st.step(lv, &bars[i-1], b)
			}
			if sig != nil && open == nil && pending == nil && !tradedDay[sig.levelID+"|"+dayKey] {
				pending = sig
			}
		}
	}

	if open != nil {
		last := &bars[len(bars)-1]
		closeTrade(len(bars)-1, last.Close, last.Timestamp, models.ExitEOD)
	}
	return trades
}

func inEntryBlackout(ts time.Time, intraday bool) bool {
	if !intraday {
		return false
	}
	return !ts.Before(models.RegularClose(ts).Add(-entryBlackout))
}

// bucketEnd reports the close time of the bucket opening at ts.
func bucketEnd(ts time.Time, tf repository.Timeframe) time.Time {
	switch tf {
	case repository.TF1d:
		return models.RegularClose(ts)
	case repository.TF1w:
		return models.RegularClose(ts.AddDate(0, 0, 4))
	default:
		return ts.Add(tf.Duration())
	}
}

func levelsFor(bars []models.Bar, i int, daily *DailyLevelTracker, useRepeat bool, cfg Config) []Level {
	var out []Level
	if daily != nil {
		out = append(out, daily.Levels()...)
	}
	if useRepeat {
		out = append(out, RepeatLevels(bars, i, cfg.RepeatLookback,
			cfg.RepeatTolerancePct, cfg.RepeatMinTouches, cfg.RepeatMaxLevels)...)
	}
	return out
}

// evalBreak signals on a close crossing the level, with the stop padded
// one tolerance beyond the level on the far side.
func evalBreak(lv *Level, prev, b *models.Bar, tolPct float64) *pendingEntry {
	switch {
	case prev.Close <= lv.Price && b.Close > lv.Price:
		return &pendingEntry{
			direction: models.DirectionLong,
			levelID:   lv.ID,
			level:     lv.Price,
			stop:      lv.Price * (1 - tolPct),
		}
	case prev.Close >= lv.Price && b.Close < lv.Price:
		return &pendingEntry{
			direction: models.DirectionShort,
			levelID:   lv.ID,
			level:     lv.Price,
			stop:      lv.Price * (1 + tolPct),
		}
	}
	return nil
}

// evalRetest signals when a single bar touches the level and closes back
// on the traded side, with the stop at that bar's extreme.
func evalRetest(lv *Level, b *models.Bar) *pendingEntry {
	if b.Low > lv.Price || b.High < lv.Price {
		return nil
	}
	switch {
	case b.Close > lv.Price:
		return &pendingEntry{
			direction: models.DirectionLong,
			levelID:   lv.ID,
			level:     lv.Price,
			stop:      b.Low,
		}
	case b.Close < lv.Price:
		return &pendingEntry{
			direction: models.DirectionShort,
			levelID:   lv.ID,
			level:     lv.Price,
			stop:      b.High,
		}
	}
	return nil
}

// step advances the three-phase machine for one level: break on a close
// crossing, then a retest phase tracking the worst excursion back into
// the level, then a confirmation close on the traded side. A close on the
// wrong side of the level at any point resets to idle.
func (st *brState) step(lv *Level, prev, b *models.Bar) *pendingEntry {
	switch st.phase {
	case brIdle:
		if prev.Close <= lv.Price && b.Close > lv.Price {
			st.phase, st.direction = brBroken, models.DirectionLong
		} else if prev.Close >= lv.Price && b.Close < lv.Price {
			st.phase, st.direction = brBroken, models.DirectionShort
		}
		return nil

	case brBroken:
		if st.invalidated(lv, b) {
			st.reset()
			return nil
		}
		if st.direction == models.DirectionLong && b.Low <= lv.Price {
			st.phase, st.extreme = brRetest, b.Low
			return st.confirm(lv, b)
		}
		if st.direction == models.DirectionShort && b.High >= lv.Price {
			st.phase, st.extreme = brRetest, b.High
			return st.confirm(lv, b)
		}
		return nil

	case brRetest:
		if st.invalidated(lv, b) {
			st.reset()
			return nil
		}
		if st.direction == models.DirectionLong && b.Low < st.extreme {
			st.extreme = b.Low
		}
		if st.direction == models.DirectionShort && b.High > st.extreme {
			st.extreme = b.High
		}
		return st.confirm(lv, b)
	}
	return nil
}

func (st *brState) invalidated(lv *Level, b *models.Bar) bool {
	if st.direction == models.DirectionLong {
		return b.Close < lv.Price
	}
	return b.Close > lv.Price
}

// confirm fires once the retest phase sees a close back on the traded
// side, then resets so the level can set up again after a fresh break.
func (st *brState) confirm(lv *Level, b *models.Bar) *pendingEntry {
	if st.direction == models.DirectionLong && b.Close > lv.Price {
		sig := &pendingEntry{
			direction: models.DirectionLong,
			levelID:   lv.ID,
			level:     lv.Price,
			stop:      st.extreme,
		}
		st.reset()
		return sig
	}
	if st.direction == models.DirectionShort && b.Close < lv.Price {
		sig := &pendingEntry{
			direction: models.DirectionShort,
			levelID:   lv.ID,
			level:     lv.Price,
			stop:      st.extreme,
		}
		st.reset()
		return sig
	}
	return nil
}

func (st *brState) reset() {
	st.phase, st.direction, st.extreme = brIdle, "", 0
}
