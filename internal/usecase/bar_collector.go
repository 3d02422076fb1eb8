package usecase

import (
	"context"

	"LevelWatch/internal/domain/models"
	drepo "LevelWatch/internal/domain/repository"
	mid "LevelWatch/internal/middleware"
)

// BarCollector reads minute bars from the market stream and hands them to
// the pipeline.
type BarCollector struct {
	stream  drepo.MarketStream
	proc    *BarProcessor
	metrics drepo.Metrics
	pipe    *mid.BarPipeline
}

// NewBarCollector creates a new BarCollector instance.
func NewBarCollector(stream drepo.MarketStream, proc *BarProcessor, metrics drepo.Metrics, pipe *mid.BarPipeline) *BarCollector {
	return &BarCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *BarCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *BarCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	barCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, barCh, errCh)
	return nil
}

// consume drains one Read channel pair. The stream's read goroutine
// closes both channels when it exits, so after a reconnect the loop must
// obtain a fresh pair or it would spin on closed-channel receives.
func (c *BarCollector) consume(ctx context.Context, barCh <-chan *models.Bar, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				if barCh == nil {
					barCh, errCh = c.reopen(ctx)
					if barCh == nil {
						return
					}
				}
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
			}
		case b, ok := <-barCh:
			if !ok {
				barCh = nil
				if errCh == nil {
					barCh, errCh = c.reopen(ctx)
					if barCh == nil {
						return
					}
				}
				continue
			}
			if b == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, b)
			} else {
				_ = c.proc.Process(ctx, b)
			}
			c.metrics.RecordLastPrice(b.Symbol, b.Close)
		}
	}
}

// reopen reconnects the stream and restarts its read loop. A nil bar
// channel means the context ended before the stream came back.
func (c *BarCollector) reopen(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			continue
		}
		return c.stream.Read(ctx)
	}
}

func (c *BarCollector) Stop() error { return c.stream.Close() }

// Processor returns the underlying BarProcessor for lifecycle management.
func (c *BarCollector) Processor() *BarProcessor { return c.proc }

// Shutdown stops the pipeline, closes the stream, and releases the
// processor's transport and storage handles.
func (c *BarCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	err := c.stream.Close()
	if c.proc != nil {
		c.proc.Close()
	}
	return err
}
