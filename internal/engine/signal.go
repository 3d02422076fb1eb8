package engine

import (
	"fmt"
	"time"

	"LevelWatch/internal/domain/models"
)

// cooldownMult scales the cooldown window: cooldown = mult x timeframe.
const cooldownMult = 2

// rearmMult scales the disengage distance required to re-arm the tap after
// it fires.
const rearmMult = 2

// StateKind discriminates the per-symbol signal state variant. Variant
// fields below a kind must not be read without checking the kind first.
type StateKind int

const (
	StateIdle StateKind = iota
	StateBroken
	StateCooldown
)

func (k StateKind) String() string {
	switch k {
	case StateBroken:
		return "broken"
	case StateCooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// SignalState is the tagged per-symbol state of the live machine.
type SignalState struct {
	Kind StateKind

	// Broken variant
	Direction  models.Direction
	LevelType  models.LevelType
	LevelPrice float64
	BrokenAt   time.Time

	// Cooldown variant
	Until time.Time
}

// TapState carries the entry hysteresis for the current break: a tolerance
// band around the broken level and a one-shot firing flag.
type TapState struct {
	CanFire   bool
	Tolerance float64
}

// candidate break levels in priority order; the first match wins.
var (
	longCandidates  = [...]models.LevelType{models.LevelPMH, models.LevelPDH}
	shortCandidates = [...]models.LevelType{models.LevelPML, models.LevelPDL}
)

// qualifies reports whether bias and strength still support direction.
func qualifies(dir models.Direction, bias models.Bias, strength models.Strength) bool {
	switch dir {
	case models.DirectionLong:
		return bias == models.BiasBullish && strength == models.StrengthStrong
	case models.DirectionShort:
		return bias == models.BiasBearish && strength == models.StrengthWeak
	default:
		return false
	}
}

// evalAggregated advances the machine on an aggregated bar close. It
// returns an alert on a break or invalidation, nil otherwise. Neutral bias
// or missing levels never error; they simply produce no transition out of
// Idle.
func evalAggregated(sym string, st *SignalState, tap *TapState, bias models.Bias, strength models.Strength, agg *models.Bar, levels *LevelTracker, p Params) *models.Alert {
	now := agg.Timestamp

	if st.Kind == StateCooldown {
		if !now.After(st.Until) {
			return nil
		}
		*st = SignalState{Kind: StateIdle}
	}

	switch st.Kind {
	case StateIdle:
		var dir models.Direction
		var candidates []models.LevelType
		switch bias {
		case models.BiasBullish:
			if strength != models.StrengthStrong {
				return nil
			}
			dir = models.DirectionLong
			candidates = longCandidates[:]
		case models.BiasBearish:
			if strength != models.StrengthWeak {
				return nil
			}
			dir = models.DirectionShort
			candidates = shortCandidates[:]
		default:
			return nil
		}
		for _, lt := range candidates {
			price, ok := levels.Level(lt)
			if !ok {
				continue
			}
			broke := (dir == models.DirectionLong && agg.Close > price) ||
				(dir == models.DirectionShort && agg.Close < price)
			if !broke {
				continue
			}
			*st = SignalState{
				Kind:       StateBroken,
				Direction:  dir,
				LevelType:  lt,
				LevelPrice: price,
				BrokenAt:   now,
			}
			*tap = TapState{
				CanFire:   true,
				Tolerance: abs(price) * p.RetestTolerancePct,
			}
			return &models.Alert{
				Timestamp:  now,
				Symbol:     sym,
				Kind:       models.AlertForming,
				Bias:       bias,
				Strength:   strength,
				Direction:  dir,
				LevelType:  lt,
				LevelPrice: price,
				StopLevel:  price,
				Close:      agg.Close,
				Message:    fmt.Sprintf("%dm close %.2f beyond %s %.2f, watching retest", p.TimeframeMin, agg.Close, lt, price),
			}
		}
		return nil

	case StateBroken:
		reason := ""
		switch {
		case !qualifies(st.Direction, bias, strength):
			reason = "bias or strength no longer qualifies"
		case st.Direction == models.DirectionLong && agg.Close <= st.LevelPrice:
			reason = "close back below broken level"
		case st.Direction == models.DirectionShort && agg.Close >= st.LevelPrice:
			reason = "close back above broken level"
		}
		if reason == "" {
			return nil
		}
		a := &models.Alert{
			Timestamp:  now,
			Symbol:     sym,
			Kind:       models.AlertInvalidation,
			Bias:       bias,
			Strength:   strength,
			Direction:  st.Direction,
			LevelType:  st.LevelType,
			LevelPrice: st.LevelPrice,
			StopLevel:  st.LevelPrice,
			Close:      agg.Close,
			Message:    "setup invalidated: " + reason,
		}
		*st = SignalState{
			Kind:  StateCooldown,
			Until: now.Add(time.Duration(cooldownMult*p.TimeframeMin) * time.Minute),
		}
		return a
	}
	return nil
}

// evalMinute runs the 1-minute entry-confirmation path: a touch of the
// tolerance band while the tap is armed fires an entry and starts cooldown.
// Firing disarms the tap; a close beyond rearmMult x tolerance on the
// correct side re-arms it.
func evalMinute(sym string, st *SignalState, tap *TapState, bias models.Bias, strength models.Strength, b *models.Bar, p Params) *models.Alert {
	if st.Kind != StateBroken || !b.Timestamp.After(st.BrokenAt) {
		return nil
	}
	if !qualifies(st.Direction, bias, strength) {
		return nil
	}

	level, tol := st.LevelPrice, tap.Tolerance
	touched := b.Low <= level+tol && b.High >= level-tol

	if touched && tap.CanFire {
		tap.CanFire = false
		a := &models.Alert{
			Timestamp:  b.Timestamp,
			Symbol:     sym,
			Kind:       models.AlertEntry,
			Bias:       bias,
			Strength:   strength,
			Direction:  st.Direction,
			LevelType:  st.LevelType,
			LevelPrice: level,
			StopLevel:  level,
			Close:      b.Close,
			Message:    fmt.Sprintf("retest of %s %.2f confirmed at %.2f", st.LevelType, level, b.Close),
		}
		*st = SignalState{
			Kind:  StateCooldown,
			Until: b.Timestamp.Add(time.Duration(cooldownMult*p.TimeframeMin) * time.Minute),
		}
		return a
	}

	if !tap.CanFire {
		rearmed := (st.Direction == models.DirectionLong && b.Close > level+rearmMult*tol) ||
			(st.Direction == models.DirectionShort && b.Close < level-rearmMult*tol)
		if rearmed {
			tap.CanFire = true
		}
	}
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
