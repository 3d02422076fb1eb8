package models

import "time"

// TradeOutcome is the finalized record of a tracked entry: excursions,
// checkpoint returns, and the terminal stop record if one occurred.
// Immutable once produced by the outcome tracker.
type TradeOutcome struct {
	AlertID    string    `json:"alert_id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	StopLevel  float64   `json:"stop_level"`

	MaxFavorable    float64       `json:"max_favorable"`     // absolute move in favor
	MaxAdverse      float64       `json:"max_adverse"`       // absolute move against
	MaxFavorablePct float64       `json:"max_favorable_pct"` // normalized by entry price
	MaxAdversePct   float64       `json:"max_adverse_pct"`
	TimeToMFE       time.Duration `json:"time_to_mfe"`

	// CheckpointPct maps elapsed minutes (1,3,5,10,15,30,60) to the
	// percentage return observed at that checkpoint. Each key is populated
	// at most once.
	CheckpointPct map[int]float64 `json:"checkpoint_pct"`

	StoppedOut bool      `json:"stopped_out"`
	StopTime   time.Time `json:"stop_time,omitempty"`
	StopPrice  float64   `json:"stop_price,omitempty"`
	StopPct    float64   `json:"stop_pct,omitempty"`
	BarsToStop int       `json:"bars_to_stop,omitempty"`
}
