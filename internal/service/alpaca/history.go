package alpaca

import (
	"context"
	"fmt"
	"time"

	"LevelWatch/internal/domain/models"
	drepo "LevelWatch/internal/domain/repository"
	"LevelWatch/internal/service/ratelimit"
	applogger "LevelWatch/pkg/logger"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

const historyRatelimitKey = "alpaca_history"

// History implements HistoricalData over the Alpaca market data REST API.
// Requests are chunked per venue day and gated by a token bucket so a
// large backfill stays under the account's request budget.
type History struct {
	client     *marketdata.Client
	feed       marketdata.Feed
	limiter    *ratelimit.Limiter
	ratePerMin int
	l          *applogger.Logger
}

// NewHistory creates the historical fetcher. ratePerMin caps outgoing
// requests; zero disables the gate.
func NewHistory(apiKey, apiSecret, baseURL, feed string, ratePerMin int, limiter *ratelimit.Limiter, l *applogger.Logger) drepo.HistoricalData {
	c := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	f := marketdata.Feed(feed)
	if f == "" {
		f = marketdata.IEX
	}
	return &History{client: c, feed: f, limiter: limiter, ratePerMin: ratePerMin, l: l}
}

// FetchBars returns 1-minute bars for [from, to]. The SDK pages
// internally; chunking by day keeps single responses bounded and lets a
// failed backfill resume at day granularity.
func (h *History) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	var out []models.Bar
	for chunkFrom := from.UTC(); chunkFrom.Before(to); {
		chunkTo := chunkFrom.Add(24 * time.Hour)
		if chunkTo.After(to) {
			chunkTo = to.UTC()
		}

		if err := h.wait(ctx); err != nil {
			return nil, err
		}
		raw, err := h.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneMin,
			Start:     chunkFrom,
			End:       chunkTo,
			Feed:      h.feed,
		})
		if err != nil {
			return nil, fmt.Errorf("alpaca bars %s %s: %w", symbol, chunkFrom.Format("2006-01-02"), err)
		}
		for i := range raw {
			out = append(out, models.Bar{
				Symbol:    symbol,
				Timestamp: raw[i].Timestamp.UTC(),
				Open:      raw[i].Open,
				High:      raw[i].High,
				Low:       raw[i].Low,
				Close:     raw[i].Close,
				Volume:    float64(raw[i].Volume),
			})
		}
		chunkFrom = chunkTo
	}
	h.l.Debug("alpaca history fetched",
		applogger.String("symbol", symbol),
		applogger.Int("bars", len(out)),
	)
	return out, nil
}

// wait blocks until the token bucket admits one request or ctx ends.
func (h *History) wait(ctx context.Context) error {
	if h.limiter == nil || h.ratePerMin <= 0 {
		return nil
	}
	capacity := float64(h.ratePerMin)
	refill := capacity / 60.0
	for !h.limiter.Allow(historyRatelimitKey, capacity, refill) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return nil
}
