package repository

import (
	"context"
	"errors"
	"time"

	"LevelWatch/internal/domain/models"
)

// ErrNotFound reports a missing run or result row.
var ErrNotFound = errors.New("not found")

// MarketStream is a live 1-minute bar feed.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Bar, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher pushes accepted bars onto the archive transport.
type Publisher interface {
	Publish(ctx context.Context, b *models.Bar) error
	PublishBatch(ctx context.Context, bars []*models.Bar) error
	Close() error
}

// EventPublisher pushes alerts and finalized outcomes to collaborators as
// they occur.
type EventPublisher interface {
	PublishAlert(ctx context.Context, a *models.Alert) error
	PublishOutcome(ctx context.Context, o *models.TradeOutcome) error
	Close() error
}

// BarStore is the durable 1-minute bar cache, keyed (symbol, timestamp).
// Upserts are idempotent: storing the same key twice leaves one row.
type BarStore interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, b *models.Bar) error
	UpsertBatch(ctx context.Context, bars []*models.Bar) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Bar, error)
	// CoveredDays returns the set of venue day keys in [from, to] for which
	// the cache already holds bars for symbol.
	CoveredDays(ctx context.Context, symbol string, from, to time.Time) (map[string]bool, error)
	Health(ctx context.Context) error
	Close() error
}

// RunStore persists backtest runs and their results.
type RunStore interface {
	Init(ctx context.Context) error
	CreateRun(ctx context.Context, run *models.BacktestRun) error
	SetRunStatus(ctx context.Context, id string, status models.RunStatus, errMsg string) error
	GetRun(ctx context.Context, id string) (*models.BacktestRun, error)
	SaveTrades(ctx context.Context, runID string, trades []models.SimTrade) error
	SaveEquity(ctx context.Context, runID string, points []models.EquityPoint) error
	SaveMetrics(ctx context.Context, runID string, m *models.RunMetrics) error
	GetMetrics(ctx context.Context, runID string) (*models.RunMetrics, error)
	ListTrades(ctx context.Context, runID string, limit, offset int) ([]models.SimTrade, error)
	ListEquity(ctx context.Context, runID string) ([]models.EquityPoint, error)
	Close() error
}

// HistoricalData fetches 1-minute bars for an explicit UTC range from the
// external market-data source. Implementations page and rate-limit
// internally.
type HistoricalData interface {
	FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
}

// Metrics records operational metrics.
type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordAlert(kind, symbol string)
	RecordRunStatus(status string)
}
