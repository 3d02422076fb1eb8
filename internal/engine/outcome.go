package engine

import (
	"time"

	"LevelWatch/internal/domain/models"
)

// checkpointMinutes are the fixed elapsed-time sampling points after entry.
var checkpointMinutes = [...]int{1, 3, 5, 10, 15, 30, 60}

// trackingWindow is how long a session stays live before completing on its
// own.
const trackingWindow = 60 * time.Minute

type sessionStatus int

const (
	sessionLive sessionStatus = iota
	sessionCompleted
	sessionStopped
)

// outcomeSession tracks one entry alert from entry until completion or stop.
// Mutable while live; its TradeOutcome is immutable once finalized.
type outcomeSession struct {
	status sessionStatus

	alertID    string
	symbol     string
	direction  models.Direction
	stopLevel  float64
	entryTime  time.Time
	entryPrice float64

	high, low float64

	maxFavorable float64
	maxAdverse   float64
	timeToMFE    time.Duration

	checkpoints map[int]float64

	stopTime   time.Time
	stopPrice  float64
	barsToStop int
	aggBars    int
}

// OutcomeTracker owns the live outcome sessions, indexed by alert id.
type OutcomeTracker struct {
	sessions map[string]*outcomeSession
	bySymbol map[string][]string
}

func NewOutcomeTracker() *OutcomeTracker {
	return &OutcomeTracker{
		sessions: make(map[string]*outcomeSession),
		bySymbol: make(map[string][]string),
	}
}

// Start opens a session for an entry alert. Non-entry alerts are ignored.
func (t *OutcomeTracker) Start(a *models.Alert) {
	if a.Kind != models.AlertEntry {
		return
	}
	s := &outcomeSession{
		alertID:     a.ID,
		symbol:      a.Symbol,
		direction:   a.Direction,
		stopLevel:   a.StopLevel,
		entryTime:   a.Timestamp,
		entryPrice:  a.Close,
		high:        a.Close,
		low:         a.Close,
		checkpoints: make(map[int]float64),
	}
	t.sessions[a.ID] = s
	t.bySymbol[a.Symbol] = append(t.bySymbol[a.Symbol], a.ID)
}

// Live reports how many sessions are still being tracked.
func (t *OutcomeTracker) Live() int { return len(t.sessions) }

// OnMinuteBar updates excursions and elapsed-time checkpoints for every
// live session on the bar's symbol.
func (t *OutcomeTracker) OnMinuteBar(b *models.Bar) {
	for _, id := range t.bySymbol[b.Symbol] {
		s, ok := t.sessions[id]
		if !ok || s.status != sessionLive {
			continue
		}
		if b.Timestamp.Before(s.entryTime) {
			continue
		}

		if b.High > s.high {
			s.high = b.High
		}
		if b.Low < s.low {
			s.low = b.Low
		}

		var fav, adv float64
		if s.direction == models.DirectionLong {
			fav = s.high - s.entryPrice
			adv = s.entryPrice - s.low
		} else {
			fav = s.entryPrice - s.low
			adv = s.high - s.entryPrice
		}
		if fav > s.maxFavorable {
			s.maxFavorable = fav
			s.timeToMFE = b.Timestamp.Sub(s.entryTime)
		}
		if adv > s.maxAdverse {
			s.maxAdverse = adv
		}

		elapsed := b.Timestamp.Sub(s.entryTime)
		for _, m := range checkpointMinutes {
			if _, done := s.checkpoints[m]; done {
				continue
			}
			if elapsed >= time.Duration(m)*time.Minute {
				s.checkpoints[m] = ret(s.direction, s.entryPrice, b.Close)
			}
		}

		if elapsed >= trackingWindow {
			s.status = sessionCompleted
		}
	}
}

// OnAggClose checks the stop condition on an aggregated-timeframe close.
func (t *OutcomeTracker) OnAggClose(symbol string, close float64, ts time.Time) {
	for _, id := range t.bySymbol[symbol] {
		s, ok := t.sessions[id]
		if !ok || s.status != sessionLive {
			continue
		}
		if !ts.After(s.entryTime) {
			continue
		}
		s.aggBars++
		stopped := (s.direction == models.DirectionLong && close < s.stopLevel) ||
			(s.direction == models.DirectionShort && close > s.stopLevel)
		if stopped {
			s.status = sessionStopped
			s.stopTime = ts
			s.stopPrice = close
			s.barsToStop = s.aggBars
		}
	}
}

// Finalize produces the outcome for a non-live session and removes it from
// the live index. A second call for the same id, or a call while the
// session is still live, returns nil.
func (t *OutcomeTracker) Finalize(alertID string) *models.TradeOutcome {
	s, ok := t.sessions[alertID]
	if !ok || s.status == sessionLive {
		return nil
	}

	o := &models.TradeOutcome{
		AlertID:       s.alertID,
		Symbol:        s.symbol,
		Direction:     s.direction,
		EntryTime:     s.entryTime,
		EntryPrice:    s.entryPrice,
		StopLevel:     s.stopLevel,
		MaxFavorable:  s.maxFavorable,
		MaxAdverse:    s.maxAdverse,
		TimeToMFE:     s.timeToMFE,
		CheckpointPct: s.checkpoints,
		StoppedOut:    s.status == sessionStopped,
	}
	if s.entryPrice != 0 {
		o.MaxFavorablePct = s.maxFavorable / s.entryPrice * 100
		o.MaxAdversePct = s.maxAdverse / s.entryPrice * 100
	}
	if o.StoppedOut {
		o.StopTime = s.stopTime
		o.StopPrice = s.stopPrice
		o.BarsToStop = s.barsToStop
		o.StopPct = ret(s.direction, s.entryPrice, s.stopPrice)
	}

	delete(t.sessions, alertID)
	ids := t.bySymbol[s.symbol]
	for i, id := range ids {
		if id == alertID {
			t.bySymbol[s.symbol] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(t.bySymbol[s.symbol]) == 0 {
		delete(t.bySymbol, s.symbol)
	}
	return o
}

// FinalizeReady finalizes every session that is no longer live.
func (t *OutcomeTracker) FinalizeReady() []*models.TradeOutcome {
	var ready []string
	for id, s := range t.sessions {
		if s.status != sessionLive {
			ready = append(ready, id)
		}
	}
	var out []*models.TradeOutcome
	for _, id := range ready {
		if o := t.Finalize(id); o != nil {
			out = append(out, o)
		}
	}
	return out
}

// ret is the signed percentage return from entry to price for a direction.
func ret(dir models.Direction, entry, price float64) float64 {
	if entry == 0 {
		return 0
	}
	r := (price - entry) / entry * 100
	if dir == models.DirectionShort {
		return -r
	}
	return r
}
