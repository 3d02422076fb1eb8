package usecase

import (
	"context"
	"encoding/json"
	"time"

	"LevelWatch/internal/engine"
	svccache "LevelWatch/internal/service/cache"
)

const snapshotKey = "snapshot:live"

// SnapshotUseCase serves the live strategy snapshot. The engine computes
// it under its own lock, so a short cache keeps bursts of pollers from
// contending with the bar path.
type SnapshotUseCase struct {
	eng   *engine.Engine
	cache svccache.BytesCache
	ttl   time.Duration
}

func NewSnapshotUseCase(eng *engine.Engine, cache svccache.BytesCache, ttl time.Duration) *SnapshotUseCase {
	return &SnapshotUseCase{eng: eng, cache: cache, ttl: ttl}
}

func (uc *SnapshotUseCase) Get(ctx context.Context) (*engine.Snapshot, error) {
	if uc.cache != nil {
		if b, ok, _ := uc.cache.GetBytes(snapshotKey); ok {
			var cached engine.Snapshot
			if err := json.Unmarshal(b, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	snap := uc.eng.Snapshot()
	if uc.cache != nil {
		if b, err := json.Marshal(snap); err == nil {
			_ = uc.cache.SetBytes(snapshotKey, b, uc.ttl)
		}
	}
	return &snap, nil
}
