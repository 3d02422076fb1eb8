package usecase

import (
	"context"
	"fmt"
	"time"

	"LevelWatch/internal/domain/models"
	drepo "LevelWatch/internal/domain/repository"
	"LevelWatch/internal/engine"
	applogger "LevelWatch/pkg/logger"
)

// BarProcessor routes each accepted bar to the configured archive backend
// and feeds it to the live strategy engine. Alerts and finalized outcomes
// the engine produces are pushed to collaborators and kept in a bounded
// in-process history for the API.
type BarProcessor struct {
	pub     drepo.Publisher
	store   drepo.BarStore
	events  drepo.EventPublisher
	eng     *engine.Engine
	alerts  *AlertHistory
	metrics drepo.Metrics
	l       *applogger.Logger
	backend string
}

// NewBarProcessor creates a new BarProcessor instance.
func NewBarProcessor(
	pub drepo.Publisher,
	store drepo.BarStore,
	events drepo.EventPublisher,
	eng *engine.Engine,
	alerts *AlertHistory,
	metrics drepo.Metrics,
	l *applogger.Logger,
	backend string,
) *BarProcessor {
	return &BarProcessor{
		pub:     pub,
		store:   store,
		events:  events,
		eng:     eng,
		alerts:  alerts,
		metrics: metrics,
		l:       l,
		backend: backend,
	}
}

// Process archives one bar and advances the strategy engine with it.
func (p *BarProcessor) Process(ctx context.Context, b *models.Bar) error {
	if b == nil {
		return fmt.Errorf("bar is nil")
	}

	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.Publish(ctx, b)
	case "clickhouse":
		err = p.store.Upsert(ctx, b)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process bar: %w", err)
	}
	p.metrics.RecordMessageSent(p.backend, b.Symbol)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())

	p.advance(ctx, b)
	return nil
}

// ProcessBatch archives bars in a batch, then advances the engine bar by
// bar in order.
func (p *BarProcessor) ProcessBatch(ctx context.Context, bars []*models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		err = p.pub.PublishBatch(ctx, bars)
	case "clickhouse":
		err = p.store.UpsertBatch(ctx, bars)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	for _, b := range bars {
		p.metrics.RecordMessageSent(p.backend, b.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	for _, b := range bars {
		p.advance(ctx, b)
	}
	return nil
}

// advance feeds the engine and fans out whatever it emitted. Publish
// failures are logged and counted but never fail the bar: the feed must
// keep moving.
func (p *BarProcessor) advance(ctx context.Context, b *models.Bar) {
	res := p.eng.OnBar(b)
	for i := range res.Alerts {
		a := &res.Alerts[i]
		p.metrics.RecordAlert(string(a.Kind), a.Symbol)
		if p.alerts != nil {
			p.alerts.Add(*a)
		}
		if p.events != nil {
			if err := p.events.PublishAlert(ctx, a); err != nil {
				p.metrics.RecordError("publish_alert")
				p.l.Warn("alert publish failed", applogger.String("alert", a.ID), applogger.Error(err))
			}
		}
		p.l.Info("alert",
			applogger.String("id", a.ID),
			applogger.String("kind", string(a.Kind)),
			applogger.String("symbol", a.Symbol),
			applogger.String("level", string(a.LevelType)),
		)
	}
	for _, o := range res.Outcomes {
		if p.events != nil {
			if err := p.events.PublishOutcome(ctx, o); err != nil {
				p.metrics.RecordError("publish_outcome")
				p.l.Warn("outcome publish failed", applogger.String("alert", o.AlertID), applogger.Error(err))
			}
		}
	}
}

// Close closes underlying resources if available.
func (p *BarProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.events != nil {
		_ = p.events.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
