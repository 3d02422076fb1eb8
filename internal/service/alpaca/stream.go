package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LevelWatch/internal/domain/models"
	drepo "LevelWatch/internal/domain/repository"
	applogger "LevelWatch/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements a MarketStream backed by the Alpaca v2 market data
// WebSocket, subscribed to 1-minute bars.
type Stream struct {
	apiKey         string
	apiSecret      string
	streamURL      string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// NewStream creates a new Alpaca MarketStream.
func NewStream(apiKey, apiSecret, streamURL string, symbols []string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) drepo.MarketStream {
	return &Stream{
		apiKey:         apiKey,
		apiSecret:      apiSecret,
		streamURL:      streamURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect dials the stream and authenticates.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("alpaca connect: %w", err)
	}
	s.conn = conn

	// the server greets with a "connected" control frame before auth
	if _, _, err := conn.ReadMessage(); err != nil {
		_ = conn.Close()
		return fmt.Errorf("alpaca greeting: %w", err)
	}
	auth := map[string]string{"action": "auth", "key": s.apiKey, "secret": s.apiSecret}
	if err := conn.WriteJSON(auth); err != nil {
		_ = conn.Close()
		return fmt.Errorf("alpaca auth: %w", err)
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		_ = conn.Close()
		return fmt.Errorf("alpaca auth ack: %w", err)
	}

	s.connected = true
	s.l.Info("alpaca stream connected")
	return nil
}

// Subscribe subscribes to minute bars for the configured symbols.
func (s *Stream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("alpaca not connected")
	}
	msg := map[string]interface{}{"action": "subscribe", "bars": s.symbols}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe bars: %w", err)
	}
	s.l.Info("alpaca subscribed", applogger.Strings("symbols", s.symbols))
	return nil
}

// one frame holds a batch of typed messages; only T == "b" carries a bar
type wsMessage struct {
	Type   string    `json:"T"`
	Symbol string    `json:"S"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
	Time   time.Time `json:"t"`
}

// Read streams bars and errors.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	bars := make(chan *models.Bar, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.conn != nil {
					_ = s.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(bars)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if s.conn == nil {
					errs <- fmt.Errorf("alpaca conn nil")
					return
				}
				_, raw, err := s.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("alpaca read: %w", err)
					return
				}
				var batch []wsMessage
				if err := json.Unmarshal(raw, &batch); err != nil {
					// ignore non-array control frames
					continue
				}
				for _, m := range batch {
					if m.Type != "b" {
						continue
					}
					bar := &models.Bar{
						Symbol:    m.Symbol,
						Timestamp: m.Time.UTC(),
						Open:      m.Open,
						High:      m.High,
						Low:       m.Low,
						Close:     m.Close,
						Volume:    m.Volume,
					}
					select {
					case bars <- bar:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return bars, errs
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool { return s.connected }
