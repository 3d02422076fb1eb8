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

const barsTable = "bars_1m"

// barsSchema keys on (symbol, ts) so re-inserting the same minute
// collapses to one row at merge time, which makes Upsert idempotent.
var barsSchema = []string{
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        symbol  LowCardinality(String),
        ts      DateTime('UTC'),
        open    Float64,
        high    Float64,
        low     Float64,
        close   Float64,
        volume  Float64,
        session LowCardinality(String),
        day_key String
    ) ENGINE = ReplacingMergeTree
    PARTITION BY toYYYYMM(ts)
    ORDER BY (symbol, ts)`, barsTable),
}

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client) domrepo.BarStore {
	return &CHBarStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, barsSchema)
}

func (s *CHBarStore) Upsert(ctx context.Context, b *models.Bar) error {
	return s.UpsertBatch(ctx, []*models.Bar{b})
}

func (s *CHBarStore) UpsertBatch(ctx context.Context, bars []*models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips, chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, b := range bars[start:end] {
			if b == nil || !b.Valid() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				b.Symbol,
				b.Timestamp.UTC(),
				b.Open,
				b.High,
				b.Low,
				b.Close,
				b.Volume,
				string(models.SessionFor(b.Timestamp)),
				models.DayKey(b.Timestamp),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, ts, open, high, low, close, volume, session, day_key) VALUES %s",
			barsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse bar upsert error", applogger.Error(err))
			}
			return fmt.Errorf("upsert bars: %w", err)
		}
	}
	return nil
}

func (s *CHBarStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Bar, error) {
	start := time.Now()
	// FINAL collapses duplicate (symbol, ts) rows the merge has not folded yet
	q := fmt.Sprintf(`SELECT symbol, ts, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC`, barsTable)
	args := []interface{}{symbol, from.UTC(), to.UTC()}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		var b models.Bar
		var ts time.Time
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = ts.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Debug("clickhouse bars query",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("took", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHBarStore) CoveredDays(ctx context.Context, symbol string, from, to time.Time) (map[string]bool, error) {
	q := fmt.Sprintf(`SELECT DISTINCT day_key FROM %s
        WHERE symbol = ? AND ts >= ? AND ts <= ?`, barsTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("covered days: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		out[day] = true
	}
	return out, rows.Err()
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) Close() error {
	return nil // pool managed by pkg client
}
