package usecase

import (
	"context"
	"fmt"
	"time"

	"LevelWatch/internal/backtest"
	"LevelWatch/internal/domain/models"
	domrepo "LevelWatch/internal/domain/repository"
	pkgcache "LevelWatch/pkg/cache"
	applogger "LevelWatch/pkg/logger"
	pkgqueue "LevelWatch/pkg/queue"
)

const (
	runJobType = "backtest_run"

	// coverageLockTTL bounds how long a crashed worker can hold a
	// symbol's backfill lock.
	coverageLockTTL = 5 * time.Minute
)

// runPayload is the queue message body; everything else lives in the run
// row so a crashed worker can be replaced without losing parameters.
type runPayload struct {
	RunID string `json:"run_id"`
}

// BacktestConfig carries the simulator knobs that are not part of the run
// request.
type BacktestConfig struct {
	RepeatLookback     int
	RepeatTolerancePct float64
	RepeatMinTouches   int
	RepeatMaxLevels    int
	TolerancePct       float64
}

// BacktestRunner owns the run lifecycle: create enqueues, the queue
// worker drives Handle, and Handle ensures bar coverage, simulates, and
// persists results. Failed runs stay FAILED; there is no automatic retry.
type BacktestRunner struct {
	runs    domrepo.RunStore
	bars    domrepo.BarStore
	history domrepo.HistoricalData
	queue   pkgqueue.QueueService
	locks   pkgcache.Service
	metrics domrepo.Metrics
	l       *applogger.Logger
	cfg     BacktestConfig
}

// NewBacktestRunner creates the runner. locks may be nil; when set,
// concurrent workers serialize backfills per symbol through it.
func NewBacktestRunner(
	runs domrepo.RunStore,
	bars domrepo.BarStore,
	history domrepo.HistoricalData,
	queue pkgqueue.QueueService,
	locks pkgcache.Service,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	cfg BacktestConfig,
) *BacktestRunner {
	return &BacktestRunner{
		runs:    runs,
		bars:    bars,
		history: history,
		queue:   queue,
		locks:   locks,
		metrics: metrics,
		l:       l,
		cfg:     cfg,
	}
}

// CreateRun persists a QUEUED run and enqueues it.
func (r *BacktestRunner) CreateRun(ctx context.Context, run *models.BacktestRun) (*models.BacktestRun, error) {
	run.ID = fmt.Sprintf("run-%x", time.Now().UnixNano())
	run.CreatedAt = time.Now().UTC()
	run.Status = models.RunQueued
	if err := r.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := r.queue.PublishMessage(ctx, runJobType, runPayload{RunID: run.ID}); err != nil {
		// the row exists; mark it failed rather than leaving a phantom QUEUED run
		_ = r.runs.SetRunStatus(ctx, run.ID, models.RunFailed, "enqueue: "+err.Error())
		return nil, fmt.Errorf("enqueue run: %w", err)
	}
	r.metrics.RecordRunStatus(string(models.RunQueued))
	return run, nil
}

// GetRun returns the run row.
func (r *BacktestRunner) GetRun(ctx context.Context, id string) (*models.BacktestRun, error) {
	return r.runs.GetRun(ctx, id)
}

// GetMetrics returns the run's metrics once DONE.
func (r *BacktestRunner) GetMetrics(ctx context.Context, id string) (*models.RunMetrics, error) {
	return r.runs.GetMetrics(ctx, id)
}

// ListTrades returns a page of the run's trades.
func (r *BacktestRunner) ListTrades(ctx context.Context, id string, limit, offset int) ([]models.SimTrade, error) {
	return r.runs.ListTrades(ctx, id, limit, offset)
}

// ListEquity returns the run's equity curve.
func (r *BacktestRunner) ListEquity(ctx context.Context, id string) ([]models.EquityPoint, error) {
	return r.runs.ListEquity(ctx, id)
}

// Name implements queue.Job.
func (r *BacktestRunner) Name() string { return "backtest-runner" }

// Type implements queue.Job.
func (r *BacktestRunner) Type() string { return runJobType }

// Handle executes one queued run end to end.
func (r *BacktestRunner) Handle(ctx context.Context, payload interface{}) error {
	p, err := pkgqueue.ParsePayload[runPayload](payload)
	if err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	run, err := r.runs.GetRun(ctx, p.RunID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", p.RunID, err)
	}
	if err := r.runs.SetRunStatus(ctx, run.ID, models.RunRunning, ""); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	r.metrics.RecordRunStatus(string(models.RunRunning))
	started := time.Now()
	r.l.Info("backtest run started",
		applogger.String("run", run.ID),
		applogger.Strings("tickers", run.Tickers),
		applogger.Int("timeframe_min", run.TimeframeMin),
	)

	if err := r.execute(ctx, run); err != nil {
		r.metrics.RecordRunStatus(string(models.RunFailed))
		r.l.Error("backtest run failed", applogger.String("run", run.ID), applogger.Error(err))
		if serr := r.runs.SetRunStatus(ctx, run.ID, models.RunFailed, err.Error()); serr != nil {
			r.l.Error("mark failed", applogger.String("run", run.ID), applogger.Error(serr))
		}
		// swallow the error: the run is terminally FAILED, no queue retry
		return nil
	}

	r.metrics.RecordRunStatus(string(models.RunDone))
	r.metrics.RecordLatency("backtest_run", time.Since(started).Seconds())
	r.l.Info("backtest run done",
		applogger.String("run", run.ID),
		applogger.Duration("took", time.Since(started)),
	)
	return r.runs.SetRunStatus(ctx, run.ID, models.RunDone, "")
}

func (r *BacktestRunner) execute(ctx context.Context, run *models.BacktestRun) error {
	tf := domrepo.NormalizeTimeframe(run.TimeframeMin)
	simCfg := backtest.Config{
		Timeframe:          tf,
		LevelSource:        run.LevelSource,
		EntryMode:          run.EntryMode,
		TolerancePct:       r.cfg.TolerancePct,
		RepeatLookback:     r.cfg.RepeatLookback,
		RepeatTolerancePct: r.cfg.RepeatTolerancePct,
		RepeatMinTouches:   r.cfg.RepeatMinTouches,
		RepeatMaxLevels:    r.cfg.RepeatMaxLevels,
	}

	var all []models.SimTrade
	for _, symbol := range run.Tickers {
		if err := r.ensureCoverage(ctx, symbol, run.From, run.To); err != nil {
			return fmt.Errorf("coverage %s: %w", symbol, err)
		}
		minuteBars, err := r.bars.Query(ctx, symbol, run.From, run.To, 0)
		if err != nil {
			return fmt.Errorf("query bars %s: %w", symbol, err)
		}
		trades := backtest.Simulate(symbol, minuteBars, simCfg)
		r.l.Debug("symbol simulated",
			applogger.String("run", run.ID),
			applogger.String("symbol", symbol),
			applogger.Int("bars", len(minuteBars)),
			applogger.Int("trades", len(trades)),
		)
		all = append(all, trades...)
	}

	metrics, equity := backtest.Compute(all)
	if err := r.runs.SaveTrades(ctx, run.ID, all); err != nil {
		return err
	}
	if err := r.runs.SaveEquity(ctx, run.ID, equity); err != nil {
		return err
	}
	return r.runs.SaveMetrics(ctx, run.ID, metrics)
}

// ensureCoverage backfills any venue trading day in [from, to] the cache
// does not know yet. The cache is authoritative once populated: covered
// days are never re-fetched.
func (r *BacktestRunner) ensureCoverage(ctx context.Context, symbol string, from, to time.Time) error {
	if unlock, err := r.lockCoverage(ctx, symbol); err != nil {
		return err
	} else if unlock != nil {
		defer unlock()
	}

	covered, err := r.bars.CoveredDays(ctx, symbol, from, to)
	if err != nil {
		return err
	}

	tz := models.VenueTZ()
	dayStart := func(t time.Time) time.Time {
		lt := t.In(tz)
		return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, tz)
	}

	var fetched []*models.Bar
	for day := dayStart(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		wd := day.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if covered[models.DayKey(day.Add(12*time.Hour))] {
			continue
		}
		chunkFrom, chunkTo := day, day.AddDate(0, 0, 1)
		if chunkFrom.Before(from) {
			chunkFrom = from
		}
		if chunkTo.After(to) {
			chunkTo = to
		}
		bars, err := r.history.FetchBars(ctx, symbol, chunkFrom.UTC(), chunkTo.UTC())
		if err != nil {
			return fmt.Errorf("fetch %s: %w", models.DayKey(day.Add(12*time.Hour)), err)
		}
		for i := range bars {
			fetched = append(fetched, &bars[i])
		}
	}
	if len(fetched) == 0 {
		return nil
	}
	return r.bars.UpsertBatch(ctx, fetched)
}

// lockCoverage serializes backfills for one symbol across workers. A lock
// backend failure degrades to unlocked operation instead of failing the
// run; the bar store upserts are idempotent either way.
func (r *BacktestRunner) lockCoverage(ctx context.Context, symbol string) (func(), error) {
	if r.locks == nil {
		return nil, nil
	}
	key := "coverage:" + symbol
	for {
		ok, err := r.locks.TryLock(ctx, key, coverageLockTTL)
		if err != nil {
			r.l.Warn("coverage lock unavailable",
				applogger.String("symbol", symbol), applogger.Error(err))
			return nil, nil
		}
		if ok {
			return func() {
				if err := r.locks.Unlock(context.Background(), key); err != nil {
					r.l.Warn("coverage unlock failed",
						applogger.String("symbol", symbol), applogger.Error(err))
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

var _ pkgqueue.Job = (*BacktestRunner)(nil)
