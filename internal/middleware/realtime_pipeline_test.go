package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
)

type recordingProc struct {
	mu   sync.Mutex
	bars []*models.Bar
	err  error
}

func (p *recordingProc) Process(ctx context.Context, b *models.Bar) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.bars = append(p.bars, b)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bars)
}

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *nopMetrics) RecordMessageSent(backend, symbol string)      {}
func (m *nopMetrics) RecordLastPrice(symbol string, price float64)  {}
func (m *nopMetrics) RecordLatency(op string, seconds float64)      {}
func (m *nopMetrics) RecordAlert(kind, symbol string)               {}
func (m *nopMetrics) RecordRunStatus(status string)                 {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}

func (m *nopMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func pipeBar(sym string, min int) *models.Bar {
	return &models.Bar{
		Symbol:    sym,
		Timestamp: time.Date(2024, 3, 12, 10, min, 0, 0, time.UTC),
		Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
	}
}

func TestPipelineForwardsValidBars(t *testing.T) {
	proc := &recordingProc{}
	m := &nopMetrics{}
	p := NewBarPipeline(proc, m)

	if err := p.Process(context.Background(), pipeBar("AAPL", 0)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("bar not forwarded")
	}
}

func TestPipelineDropsInvalidSilently(t *testing.T) {
	proc := &recordingProc{}
	m := &nopMetrics{}
	p := NewBarPipeline(proc, m)

	if err := p.Process(context.Background(), &models.Bar{Symbol: "bad sym"}); err != nil {
		t.Fatalf("invalid bar must not error, got %v", err)
	}
	if proc.count() != 0 {
		t.Fatalf("invalid bar forwarded")
	}
	if m.errCount("pipeline_validate") != 1 {
		t.Fatalf("validation drop not counted")
	}
}

func TestPipelineSuppressesDuplicates(t *testing.T) {
	proc := &recordingProc{}
	m := &nopMetrics{}
	p := NewBarPipeline(proc, m)

	ctx := context.Background()
	_ = p.Process(ctx, pipeBar("AAPL", 0))
	_ = p.Process(ctx, pipeBar("AAPL", 0))
	_ = p.Process(ctx, pipeBar("MSFT", 0))

	if proc.count() != 2 {
		t.Fatalf("forwarded %d bars, want 2 (duplicate suppressed per symbol)", proc.count())
	}
	if m.errCount("pipeline_duplicate") != 1 {
		t.Fatalf("duplicate not counted")
	}
}

func TestPipelineBuffersOnDownstreamError(t *testing.T) {
	proc := &recordingProc{err: errors.New("down")}
	m := &nopMetrics{}
	p := NewBarPipeline(proc, m, WithBufferSize(4))

	err := p.Process(context.Background(), pipeBar("AAPL", 0))
	if err == nil {
		t.Fatalf("expected downstream error surfaced")
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("bar not buffered, depth %d", len(p.bufCh))
	}
}
