package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	pkgch "FinFuse/pkg/clickhouse"
	applogger "FinFuse/pkg/logger"
)

// CHNewsStore implements NewsStore backed by ClickHouse, keyed by dedup
// hash. ReplacingMergeTree on the hash makes re-inserts of the same item
// harmless; the hash check in the ingestor keeps happy-path writes single.
type CHNewsStore struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger
}

func NewCHNewsStore(ch *pkgch.Client, database string) *CHNewsStore {
	return &CHNewsStore{ch: ch, db: ch.DB(), database: database, table: database + ".news_items"}
}

func (s *CHNewsStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init ensures the database and news table exist (idempotent).
func (s *CHNewsStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s (
                dedup_hash      FixedString(64),
                source_id       String,
                published_at    DateTime64(3, 'UTC'),
                title           String,
                text            String,
                entities        Array(LowCardinality(String)),
                sentiment       Float64,
                embedding       Array(Float32),
                annotate_failed UInt8
            ) ENGINE = ReplacingMergeTree
            PARTITION BY toYYYYMM(published_at)
            ORDER BY dedup_hash
        `, s.table),
	})
}

func (s *CHNewsStore) Insert(ctx context.Context, item *models.NewsItem) error {
	q := fmt.Sprintf(`
        INSERT INTO %s
            (dedup_hash, source_id, published_at, title, text, entities, sentiment, embedding, annotate_failed)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, s.table)
	failed := uint8(0)
	if item.AnnotateFailed {
		failed = 1
	}
	if _, err := s.db.ExecContext(ctx, q,
		item.DedupHash, item.SourceID, item.PublishedAt, item.Title, item.Text,
		item.Entities, item.Sentiment, item.Embedding, failed,
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse insert_news error",
				applogger.String("source_id", item.SourceID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert news: %w", models.ErrStorageUnavailable)
	}
	return nil
}

func (s *CHNewsStore) Seen(ctx context.Context, dedupHash string) (bool, error) {
	q := fmt.Sprintf("SELECT count() FROM %s WHERE dedup_hash = ?", s.table)
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, dedupHash).Scan(&n); err != nil {
		return false, fmt.Errorf("seen: %w", models.ErrStorageUnavailable)
	}
	return n > 0, nil
}

func (s *CHNewsStore) QueryWindow(ctx context.Context, instrument string, from, to time.Time) ([]models.NewsItem, error) {
	q := fmt.Sprintf(`
        SELECT dedup_hash, source_id, published_at, title, text, entities, sentiment, embedding, annotate_failed
        FROM %s FINAL
        WHERE published_at >= ? AND published_at <= ?
    `, s.table)
	args := []interface{}{from, to}
	if instrument != "" {
		q += " AND has(entities, ?)"
		args = append(args, instrument)
	}
	q += " ORDER BY published_at ASC"
	return s.scan(ctx, q, args...)
}

func (s *CHNewsStore) Scan(ctx context.Context, instrument string) ([]models.NewsItem, error) {
	q := fmt.Sprintf(`
        SELECT dedup_hash, source_id, published_at, title, text, entities, sentiment, embedding, annotate_failed
        FROM %s FINAL
    `, s.table)
	var args []interface{}
	if instrument != "" {
		q += " WHERE has(entities, ?)"
		args = append(args, instrument)
	}
	q += " ORDER BY published_at ASC"
	return s.scan(ctx, q, args...)
}

func (s *CHNewsStore) scan(ctx context.Context, q string, args ...interface{}) ([]models.NewsItem, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_news error", applogger.Error(err))
		}
		return nil, fmt.Errorf("query news: %w", models.ErrStorageUnavailable)
	}
	defer rows.Close()

	out := make([]models.NewsItem, 0, 64)
	for rows.Next() {
		var it models.NewsItem
		var failed uint8
		if err := rows.Scan(&it.DedupHash, &it.SourceID, &it.PublishedAt, &it.Title, &it.Text,
			&it.Entities, &it.Sentiment, &it.Embedding, &failed); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		it.PublishedAt = it.PublishedAt.UTC()
		it.AnnotateFailed = failed != 0
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", models.ErrStorageUnavailable)
	}
	return out, nil
}

func (s *CHNewsStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHNewsStore) Close() error {
	return nil // Managed by pkg client
}

var _ domrepo.NewsStore = (*CHNewsStore)(nil)
