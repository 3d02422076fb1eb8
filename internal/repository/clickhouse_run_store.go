package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"LevelWatch/internal/domain/models"
	domrepo "LevelWatch/internal/domain/repository"
	pkgch "LevelWatch/pkg/clickhouse"
	applogger "LevelWatch/pkg/logger"
)

// Run rows are versioned by updated_at; status changes insert a new
// version and reads use FINAL to see the latest one.
var runsSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
        id            String,
        created_at    DateTime('UTC'),
        tickers       Array(String),
        timeframe_min Int32,
        range_from    DateTime('UTC'),
        range_to      DateTime('UTC'),
        level_source  LowCardinality(String),
        entry_mode    LowCardinality(String),
        tag           String,
        status        LowCardinality(String),
        error         String,
        started_at    DateTime('UTC'),
        finished_at   DateTime('UTC'),
        updated_at    DateTime64(3, 'UTC')
    ) ENGINE = ReplacingMergeTree(updated_at)
    ORDER BY id`,
	`CREATE TABLE IF NOT EXISTS run_trades (
        run_id       String,
        seq          Int32,
        symbol       LowCardinality(String),
        direction    LowCardinality(String),
        level_id     String,
        level_price  Float64,
        entry_time   DateTime('UTC'),
        entry_price  Float64,
        stop_price   Float64,
        target_price Float64,
        exit_time    DateTime('UTC'),
        exit_price   Float64,
        exit_reason  LowCardinality(String),
        r_multiple   Float64,
        bars_held    Int32
    ) ENGINE = MergeTree
    ORDER BY (run_id, seq)`,
	`CREATE TABLE IF NOT EXISTS run_equity (
        run_id    String,
        seq       Int32,
        exit_time DateTime('UTC'),
        equity    Float64,
        drawdown  Float64
    ) ENGINE = MergeTree
    ORDER BY (run_id, seq)`,
	`CREATE TABLE IF NOT EXISTS run_metrics (
        run_id              String,
        total_trades        Int32,
        win_rate            Float64,
        avg_r               Float64,
        expectancy          Float64,
        profit_factor       Float64,
        max_drawdown        Float64,
        sharpe              Float64,
        longest_win_streak  Int32,
        longest_loss_streak Int32,
        avg_bars_held       Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY run_id`,
}

// CHRunStore implements RunStore backed by ClickHouse.
type CHRunStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHRunStore(ch *pkgch.Client) domrepo.RunStore {
	return &CHRunStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHRunStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHRunStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, runsSchema)
}

func (s *CHRunStore) CreateRun(ctx context.Context, run *models.BacktestRun) error {
	return s.insertRun(ctx, run)
}

func (s *CHRunStore) insertRun(ctx context.Context, run *models.BacktestRun) error {
	const q = `INSERT INTO runs
        (id, created_at, tickers, timeframe_min, range_from, range_to,
         level_source, entry_mode, tag, status, error, started_at, finished_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		run.ID,
		run.CreatedAt.UTC(),
		run.Tickers,
		int32(run.TimeframeMin),
		run.From.UTC(),
		run.To.UTC(),
		string(run.LevelSource),
		string(run.EntryMode),
		run.Tag,
		string(run.Status),
		run.Error,
		orEpoch(run.StartedAt),
		orEpoch(run.FinishedAt),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *CHRunStore) SetRunStatus(ctx context.Context, id string, status models.RunStatus, errMsg string) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	run.Status = status
	run.Error = errMsg
	now := time.Now().UTC()
	switch status {
	case models.RunRunning:
		run.StartedAt = now
	case models.RunDone, models.RunFailed:
		run.FinishedAt = now
	}
	return s.insertRun(ctx, run)
}

func (s *CHRunStore) GetRun(ctx context.Context, id string) (*models.BacktestRun, error) {
	const q = `SELECT id, created_at, tickers, timeframe_min, range_from, range_to,
        level_source, entry_mode, tag, status, error, started_at, finished_at
        FROM runs FINAL WHERE id = ?`
	row := s.db.QueryRowContext(ctx, q, id)

	var (
		run                  models.BacktestRun
		levelSource, mode    string
		status               string
		created, from, to    time.Time
		started, finished    time.Time
	)
	err := row.Scan(&run.ID, &created, &run.Tickers, &run.TimeframeMin, &from, &to,
		&levelSource, &mode, &run.Tag, &status, &run.Error, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.CreatedAt = created.UTC()
	run.From = from.UTC()
	run.To = to.UTC()
	run.LevelSource = models.LevelSource(levelSource)
	run.EntryMode = models.EntryMode(mode)
	run.Status = models.RunStatus(status)
	if started.Unix() > 0 {
		run.StartedAt = started.UTC()
	}
	if finished.Unix() > 0 {
		run.FinishedAt = finished.UTC()
	}
	return &run, nil
}

func (s *CHRunStore) SaveTrades(ctx context.Context, runID string, trades []models.SimTrade) error {
	if len(trades) == 0 {
		return nil
	}
	values := make([]string, 0, len(trades))
	args := make([]interface{}, 0, len(trades)*15)
	for i := range trades {
		t := &trades[i]
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			runID, int32(i), t.Symbol, string(t.Direction), t.LevelID, t.LevelPrice,
			t.EntryTime.UTC(), t.EntryPrice, t.StopPrice, t.TargetPrice,
			t.ExitTime.UTC(), t.ExitPrice, string(t.ExitReason), t.RMultiple, int32(t.BarsHeld),
		)
	}
	q := `INSERT INTO run_trades
        (run_id, seq, symbol, direction, level_id, level_price,
         entry_time, entry_price, stop_price, target_price,
         exit_time, exit_price, exit_reason, r_multiple, bars_held)
        VALUES ` + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save trades: %w", err)
	}
	return nil
}

func (s *CHRunStore) SaveEquity(ctx context.Context, runID string, points []models.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}
	values := make([]string, 0, len(points))
	args := make([]interface{}, 0, len(points)*5)
	for _, p := range points {
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, runID, int32(p.Seq), p.ExitTime.UTC(), p.Equity, p.Drawdown)
	}
	q := "INSERT INTO run_equity (run_id, seq, exit_time, equity, drawdown) VALUES " + strings.Join(values, ",")
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save equity: %w", err)
	}
	return nil
}

func (s *CHRunStore) SaveMetrics(ctx context.Context, runID string, m *models.RunMetrics) error {
	const q = `INSERT INTO run_metrics
        (run_id, total_trades, win_rate, avg_r, expectancy, profit_factor,
         max_drawdown, sharpe, longest_win_streak, longest_loss_streak, avg_bars_held)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		runID, int32(m.TotalTrades), m.WinRate, m.AvgR, m.Expectancy, m.ProfitFactor,
		m.MaxDrawdown, m.Sharpe, int32(m.LongestWinStreak), int32(m.LongestLossStreak), m.AvgBarsHeld,
	)
	if err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

func (s *CHRunStore) GetMetrics(ctx context.Context, runID string) (*models.RunMetrics, error) {
	const q = `SELECT total_trades, win_rate, avg_r, expectancy, profit_factor,
        max_drawdown, sharpe, longest_win_streak, longest_loss_streak, avg_bars_held
        FROM run_metrics FINAL WHERE run_id = ?`
	var m models.RunMetrics
	err := s.db.QueryRowContext(ctx, q, runID).Scan(
		&m.TotalTrades, &m.WinRate, &m.AvgR, &m.Expectancy, &m.ProfitFactor,
		&m.MaxDrawdown, &m.Sharpe, &m.LongestWinStreak, &m.LongestLossStreak, &m.AvgBarsHeld,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("metrics for run %s: %w", runID, domrepo.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	return &m, nil
}

func (s *CHRunStore) ListTrades(ctx context.Context, runID string, limit, offset int) ([]models.SimTrade, error) {
	q := `SELECT symbol, direction, level_id, level_price,
        entry_time, entry_price, stop_price, target_price,
        exit_time, exit_price, exit_reason, r_multiple, bars_held
        FROM run_trades WHERE run_id = ? ORDER BY seq ASC`
	args := []interface{}{runID}
	if limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []models.SimTrade
	for rows.Next() {
		var (
			t                 models.SimTrade
			direction, reason string
			entry, exit       time.Time
		)
		if err := rows.Scan(&t.Symbol, &direction, &t.LevelID, &t.LevelPrice,
			&entry, &t.EntryPrice, &t.StopPrice, &t.TargetPrice,
			&exit, &t.ExitPrice, &reason, &t.RMultiple, &t.BarsHeld); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Direction = models.Direction(direction)
		t.ExitReason = models.ExitReason(reason)
		t.EntryTime = entry.UTC()
		t.ExitTime = exit.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *CHRunStore) ListEquity(ctx context.Context, runID string) ([]models.EquityPoint, error) {
	const q = `SELECT seq, exit_time, equity, drawdown
        FROM run_equity WHERE run_id = ? ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list equity: %w", err)
	}
	defer rows.Close()

	var out []models.EquityPoint
	for rows.Next() {
		var p models.EquityPoint
		var ts time.Time
		if err := rows.Scan(&p.Seq, &ts, &p.Equity, &p.Drawdown); err != nil {
			return nil, fmt.Errorf("scan equity: %w", err)
		}
		p.ExitTime = ts.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *CHRunStore) Close() error {
	return nil // pool managed by pkg client
}

// orEpoch maps the zero time to the unix epoch so DateTime columns
// never see out-of-range values.
func orEpoch(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t.UTC()
}
