package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	applogger "MacroGate/pkg/logger"
)

// CHSeriesSource builds bars from ticks stored in ClickHouse.
type CHSeriesSource struct {
	db       *sql.DB
	table    string
	interval domrepo.ChartInterval
	lookback time.Duration
	now      func() time.Time
	l        *applogger.Logger
}

var _ domrepo.SeriesSource = (*CHSeriesSource)(nil)

func NewCHSeriesSource(db *sql.DB, table string, interval domrepo.ChartInterval, lookback time.Duration) *CHSeriesSource {
	if lookback <= 0 {
		lookback = 5 * 24 * time.Hour
	}
	return &CHSeriesSource{
		db:       db,
		table:    table,
		interval: interval,
		lookback: lookback,
		now:      time.Now,
		l:        applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (s *CHSeriesSource) SetLogger(l *applogger.Logger) { s.l = l }

// BarsSchema returns the DDL for the tick table read by this source.
func BarsSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ts     DateTime64(3, 'UTC'),
            symbol LowCardinality(String),
            price  Float64
        ) ENGINE = MergeTree
        ORDER BY (symbol, ts)`, table)}
}

func (s *CHSeriesSource) FetchSeries(ctx context.Context, ticker string) ([]models.Bar, error) {
	start := time.Now()
	const qtpl = `
        SELECT toStartOfInterval(ts, toIntervalSecond(?)) AS bucket,
               argMin(price, ts), max(price), min(price), argMax(price, ts)
        FROM %s
        WHERE symbol = ? AND ts >= ?
        GROUP BY bucket
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table),
		s.interval.Seconds(), ticker, s.now().Add(-s.lookback).UTC())
	if err != nil {
		s.l.Error("clickhouse fetch_series query error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Error(err))
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	defer rows.Close()

	var out []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, domrepo.ErrNoSeries
	}
	s.l.Debug("clickhouse fetch_series ok",
		applogger.String("ticker", ticker),
		applogger.String("interval", string(s.interval)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHSeriesSource) FetchLastPrice(ctx context.Context, ticker string) (float64, error) {
	q := fmt.Sprintf(`SELECT count(), argMax(price, ts) FROM %s WHERE symbol = ?`, s.table)
	var (
		n     uint64
		price float64
	)
	if err := s.db.QueryRowContext(ctx, q, ticker).Scan(&n, &price); err != nil {
		return 0, fmt.Errorf("fetch last price: %w", err)
	}
	if n == 0 {
		return 0, domrepo.ErrNoSeries
	}
	return price, nil
}
