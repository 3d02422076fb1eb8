package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LevelWatch/internal/domain/models"
	domrepo "LevelWatch/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, b *models.Bar) error
}

// BarPipeline sits between the market stream and the processing fan-out.
// Malformed bars are dropped silently (counted, not errored), exact
// duplicates are suppressed, and bars are buffered when downstream is
// unavailable.
type BarPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	bufSize  int
	bufCh    chan *models.Bar
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted bar timestamp
	// metrics
	bufDepthGauge func(int)
}

type PipelineOption func(*BarPipeline)

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *BarPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewBarPipeline creates a new pipeline.
func NewBarPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *BarPipeline {
	p := &BarPipeline{
		proc:     proc,
		metrics:  metrics,
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.Bar, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Bar, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	return p
}

// Start launches background flushing of buffered bars.
func (p *BarPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case b := <-p.bufCh:
				if b == nil {
					continue
				}
				if err := p.proc.Process(ctx, b); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- b:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *BarPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and forwards a bar downstream, buffering on errors.
// A malformed bar is normal feed noise: it is dropped and counted, and
// nil is returned so the caller keeps reading.
func (p *BarPipeline) Process(ctx context.Context, b *models.Bar) error {
	start := time.Now()
	if b == nil || !b.Valid() {
		p.metrics.RecordError("pipeline_validate")
		return nil
	}
	if p.duplicate(b) {
		p.metrics.RecordError("pipeline_duplicate")
		return nil
	}

	if err := p.proc.Process(ctx, b); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- b:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// duplicate suppresses a bar whose timestamp matches the last accepted
// bar for the symbol. Out-of-order bars pass through; the store upsert
// keys on (symbol, timestamp) so they remain idempotent downstream.
func (p *BarPipeline) duplicate(b *models.Bar) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastSeen[b.Symbol]; ok && last.Equal(b.Timestamp) {
		return true
	}
	p.lastSeen[b.Symbol] = b.Timestamp
	return false
}
