package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"LevelWatch/internal/backtest"
	"LevelWatch/internal/domain/models"
	domrepo "LevelWatch/internal/domain/repository"
	svccache "LevelWatch/internal/service/cache"
	xutil "LevelWatch/pkg/util"
)

// CandlesUseCase serves historical candles from the bar cache, resampled
// to the requested timeframe. Responses are cached briefly since the
// underlying minute data only changes once a minute.
type CandlesUseCase struct {
	store domrepo.BarStore
	cache svccache.BytesCache
	ttl   time.Duration
}

func NewCandlesUseCase(store domrepo.BarStore, cache svccache.BytesCache, ttl time.Duration) *CandlesUseCase {
	return &CandlesUseCase{store: store, cache: cache, ttl: ttl}
}

type GetCandlesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Symbol    string       `json:"symbol"`
	Timeframe int          `json:"timeframe_min"`
	From      time.Time    `json:"from"`
	To        time.Time    `json:"to"`
	Count     int          `json:"count"`
	Candles   []models.Bar `json:"candles"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if !models.ValidSymbol(p.Symbol) {
		return nil, fmt.Errorf("invalid symbol")
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}
	if p.Limit > 50000 {
		p.Limit = 50000
	}
	// Aligned ranges keep the cache key stable across sub-bar jitter in
	// client requests.
	p.From, p.To = xutil.AlignFromTo(p.From, p.To, int(p.Timeframe))

	key := fmt.Sprintf("candles:%s:%d:%d:%d:%d",
		p.Symbol, p.Timeframe, p.From.Unix(), p.To.Unix(), p.Limit)
	if uc.cache != nil {
		if b, ok, _ := uc.cache.GetBytes(key); ok {
			var cached GetCandlesResult
			if err := json.Unmarshal(b, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	minuteBars, err := uc.store.Query(ctx, p.Symbol, p.From, p.To, 0)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	candles := backtest.Resample(minuteBars, p.Timeframe)
	if len(candles) > p.Limit {
		candles = candles[len(candles)-p.Limit:]
	}

	res := &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: int(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}
	if uc.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			_ = uc.cache.SetBytes(key, b, uc.ttl)
		}
	}
	return res, nil
}
