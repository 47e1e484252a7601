package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	pkgch "FinFuse/pkg/clickhouse"
	applogger "FinFuse/pkg/logger"
)

// CHPriceStore implements PriceStore backed by ClickHouse. The table uses
// ReplacingMergeTree keyed by (instrument, ts), so re-inserting a bar for
// an existing key supersedes it instead of duplicating it; reads use FINAL
// to observe the collapsed view.
type CHPriceStore struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client, database string) *CHPriceStore {
	return &CHPriceStore{ch: ch, db: ch.DB(), database: database, table: database + ".price_bars"}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init ensures the database and bar table exist (idempotent).
func (s *CHPriceStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s (
                instrument LowCardinality(String),
                ts         DateTime64(3, 'UTC'),
                open       Float64,
                high       Float64,
                low        Float64,
                close      Float64,
                vol        Float64
            ) ENGINE = ReplacingMergeTree
            PARTITION BY toYYYYMM(ts)
            ORDER BY (instrument, ts)
        `, s.table),
	})
}

// UpsertBatch writes all bars in a single INSERT so the batch lands
// atomically or not at all.
func (s *CHPriceStore) UpsertBatch(ctx context.Context, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*7)
	for _, b := range bars {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, b.Instrument, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (instrument, ts, open, high, low, close, vol) VALUES %s",
		s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse upsert_bars error",
				applogger.String("table", s.table),
				applogger.Int("rows", len(bars)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert bars: %w", models.ErrStorageUnavailable)
	}
	return nil
}

func (s *CHPriceStore) Query(ctx context.Context, instrument string, from, to time.Time) ([]models.PriceBar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT instrument, ts, open, high, low, close, vol
        FROM %s FINAL
        WHERE instrument = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, instrument, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_bars error",
				applogger.String("instrument", instrument),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query bars: %w", models.ErrStorageUnavailable)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 256)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Instrument, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", models.ErrStorageUnavailable)
	}
	if s.l != nil {
		s.l.Debug("clickhouse query_bars ok",
			applogger.String("instrument", instrument),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHPriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHPriceStore) Close() error {
	return nil // Managed by pkg client
}

var _ domrepo.PriceStore = (*CHPriceStore)(nil)
