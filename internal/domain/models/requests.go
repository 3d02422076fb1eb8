package models

// Requests for HTTP endpoints. Defined in domain for consistency and reuse.

type CreateRunRequest struct {
	Tickers      []string `json:"tickers" validate:"required,min=1,max=50,dive,min=1,max=10"`
	TimeframeMin int      `json:"timeframe_min" default:"5" validate:"oneof=1 5 15 30 60 390 1950"`
	From         string   `json:"from" validate:"required"`
	To           string   `json:"to" validate:"required"`
	LevelSource  string   `json:"level_source" default:"DAILY" validate:"oneof=DAILY REPEAT BOTH"`
	EntryMode    string   `json:"entry_mode" default:"BREAK_RETEST" validate:"oneof=BREAK RETEST BREAK_RETEST"`
	Tag          string   `json:"tag" validate:"max=64"`
}

type RunTradesRequest struct {
	ID     string `param:"id" validate:"required"`
	Limit  int    `query:"limit" default:"1000" validate:"gte=1,lte=10000"`
	Offset int    `query:"offset" default:"0" validate:"gte=0"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	From   string `query:"from" validate:"required"`
	To     string `query:"to" validate:"required"`
	TF     int    `query:"tf" default:"5" validate:"oneof=1 5 15 30 60 390 1950"`
	Limit  int    `query:"limit" default:"10000" validate:"gte=1,lte=50000"`
}

type AlertsRequest struct {
	Symbol string `query:"symbol"`
	Kind   string `query:"kind" validate:"omitempty,oneof=forming entry invalidation"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}
