package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
	mid "LevelWatch/internal/middleware"
)

type collectorMetrics struct{}

func (collectorMetrics) RecordMessageSent(backend, symbol string) {}
func (collectorMetrics) RecordError(kind string) {}
func (collectorMetrics) RecordLastPrice(symbol string, price float64) {}
func (collectorMetrics) RecordLatency(op string, seconds float64) {}
func (collectorMetrics) RecordAlert(kind, symbol string) {}
func (collectorMetrics) RecordRunStatus(status string) {}

type sinkProc struct {
	mu   sync.Mutex
	bars []*models.Bar
}

func (s *sinkProc) Process(ctx context.Context, b *models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = append(s.bars, b)
	return nil
}

func (s *sinkProc) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars)
}

// droppingStream fails its first read pair the way a dropped websocket
// does: one error on the error channel, then both channels close.
type droppingStream struct {
	mu         sync.Mutex
	reads      int
	reconnects int
}

func (s *droppingStream) Connect(ctx context.Context) error   { return nil }
func (s *droppingStream) Subscribe(ctx context.Context) error { return nil }
func (s *droppingStream) Close() error                        { return nil }
func (s *droppingStream) IsConnected() bool                   { return true }

func (s *droppingStream) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return nil
}

func (s *droppingStream) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	s.mu.Lock()
	s.reads++
	first := s.reads == 1
	s.mu.Unlock()

	bars := make(chan *models.Bar, 8)
	errs := make(chan error, 1)
	if first {
		errs <- fmt.Errorf("connection reset")
		close(bars)
		close(errs)
		return bars, errs
	}
	bars <- &models.Bar{
		Symbol:    "AAPL",
		Timestamp: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
		Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
	}
	return bars, errs
}

func (s *droppingStream) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.reconnects
}

func TestCollectorResumesAfterStreamDrop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &droppingStream{}
	sink := &sinkProc{}
	pipe := mid.NewBarPipeline(sink, collectorMetrics{}, mid.WithBufferSize(4))
	c := NewBarCollector(stream, nil, collectorMetrics{}, pipe)

	barCh, errCh := stream.Read(ctx)
	go c.consume(ctx, barCh, errCh)

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no bar consumed after stream drop")
		}
		time.Sleep(10 * time.Millisecond)
	}

	reads, reconnects := stream.counts()
	if reconnects != 1 {
		t.Fatalf("expected one reconnect, got %d", reconnects)
	}
	if reads != 2 {
		t.Fatalf("expected a fresh read pair after reconnect, got %d reads", reads)
	}
}
