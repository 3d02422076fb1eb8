package models

import (
	"encoding/json"
	"math"
	"time"
)

// LevelSource selects which level family a backtest trades against.
type LevelSource string

const (
	LevelSourceDaily  LevelSource = "DAILY"
	LevelSourceRepeat LevelSource = "REPEAT"
	LevelSourceBoth   LevelSource = "BOTH"
)

// EntryMode selects the simulated entry rule.
type EntryMode string

const (
	EntryBreak       EntryMode = "BREAK"
	EntryRetest      EntryMode = "RETEST"
	EntryBreakRetest EntryMode = "BREAK_RETEST"
)

// ExitReason records how a simulated trade closed.
type ExitReason string

const (
	ExitStop   ExitReason = "STOP"
	ExitTarget ExitReason = "TARGET"
	ExitEOD    ExitReason = "EOD"
)

// SimTrade is a fully determined backtest trade.
type SimTrade struct {
	Symbol      string     `json:"symbol"`
	Direction   Direction  `json:"direction"`
	LevelID     string     `json:"level_id"`
	LevelPrice  float64    `json:"level_price"`
	EntryTime   time.Time  `json:"entry_time"`
	EntryPrice  float64    `json:"entry_price"`
	StopPrice   float64    `json:"stop_price"`
	TargetPrice float64    `json:"target_price"`
	ExitTime    time.Time  `json:"exit_time"`
	ExitPrice   float64    `json:"exit_price"`
	ExitReason  ExitReason `json:"exit_reason"`
	RMultiple   float64    `json:"r_multiple"`
	BarsHeld    int        `json:"bars_held"`
}

// RunStatus is the lifecycle state of a backtest run.
type RunStatus string

const (
	RunQueued  RunStatus = "QUEUED"
	RunRunning RunStatus = "RUNNING"
	RunDone    RunStatus = "DONE"
	RunFailed  RunStatus = "FAILED"
)

// BacktestRun is a persisted run record.
type BacktestRun struct {
	ID           string      `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	Tickers      []string    `json:"tickers"`
	TimeframeMin int         `json:"timeframe_min"`
	From         time.Time   `json:"from"`
	To           time.Time   `json:"to"`
	LevelSource  LevelSource `json:"level_source"`
	EntryMode    EntryMode   `json:"entry_mode"`
	Tag          string      `json:"tag,omitempty"`
	Status       RunStatus   `json:"status"`
	Error        string      `json:"error,omitempty"`
	StartedAt    time.Time   `json:"started_at,omitempty"`
	FinishedAt   time.Time   `json:"finished_at,omitempty"`
}

// RunMetrics summarizes a trade list in risk-multiples.
type RunMetrics struct {
	TotalTrades       int     `json:"total_trades"`
	WinRate           float64 `json:"win_rate"`
	AvgR              float64 `json:"avg_r"`
	Expectancy        float64 `json:"expectancy"`
	ProfitFactor      float64 `json:"profit_factor"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	Sharpe            float64 `json:"sharpe"`
	LongestWinStreak  int     `json:"longest_win_streak"`
	LongestLossStreak int     `json:"longest_loss_streak"`
	AvgBarsHeld       float64 `json:"avg_bars_held"`
}

// MarshalJSON renders a non-finite profit factor (a run with wins and no
// losses) as null, since encoding/json refuses to encode +/-Inf.
func (m RunMetrics) MarshalJSON() ([]byte, error) {
	type alias RunMetrics
	wire := struct {
		alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias: alias(m)}
	if !math.IsInf(m.ProfitFactor, 0) && !math.IsNaN(m.ProfitFactor) {
		wire.ProfitFactor = &m.ProfitFactor
	}
	return json.Marshal(wire)
}

// EquityPoint is one step of the cumulative risk-multiple equity curve.
// Drawdown is equity minus running peak and is always <= 0.
type EquityPoint struct {
	Seq      int       `json:"seq"`
	ExitTime time.Time `json:"exit_time"`
	Equity   float64   `json:"equity"`
	Drawdown float64   `json:"drawdown"`
}
