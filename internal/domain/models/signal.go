package models

import "time"

// Bias is the overall directional lean derived from benchmark and breadth
// agreement.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// Strength labels a symbol's return against its benchmark, conditioned on
// bias.
type Strength string

const (
	StrengthStrong Strength = "STRONG"
	StrengthWeak   Strength = "WEAK"
	StrengthNone   Strength = "NONE"
)

// Direction of a breakout or trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// LevelType identifies a tracked reference level.
type LevelType string

const (
	LevelPMH LevelType = "PMH" // premarket (extended-session) high
	LevelPML LevelType = "PML" // premarket (extended-session) low
	LevelPDH LevelType = "PDH" // prior-day regular-session high
	LevelPDL LevelType = "PDL" // prior-day regular-session low
)

// AlertKind classifies an alert's place in the setup lifecycle.
type AlertKind string

const (
	AlertForming      AlertKind = "forming"
	AlertEntry        AlertKind = "entry"
	AlertInvalidation AlertKind = "invalidation"
)

// Alert is an immutable signal record emitted by the live state machine.
type Alert struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Kind       AlertKind `json:"kind"`
	Bias       Bias      `json:"bias"`
	Strength   Strength  `json:"strength"`
	Direction  Direction `json:"direction"`
	LevelType  LevelType `json:"level_type"`
	LevelPrice float64   `json:"level_price"`
	StopLevel  float64   `json:"stop_level"`
	Close      float64   `json:"close"`
	Message    string    `json:"message"`
}
