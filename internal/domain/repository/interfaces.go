package repository

import (
	"context"
	"time"

	"FinFuse/internal/domain/models"
)

// PriceStore persists validated price bars keyed by (instrument, timestamp).
// UpsertBatch must be atomic per batch: either all bars land or none do.
type PriceStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	UpsertBatch(ctx context.Context, bars []models.PriceBar) error
	Query(ctx context.Context, instrument string, from, to time.Time) ([]models.PriceBar, error)
	Health(ctx context.Context) error
	Close() error
}

// NewsStore persists annotated news items keyed by dedup hash.
type NewsStore interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, item *models.NewsItem) error
	Seen(ctx context.Context, dedupHash string) (bool, error)
	// QueryWindow returns items published in [from, to]; instrument == ""
	// means no entity filter.
	QueryWindow(ctx context.Context, instrument string, from, to time.Time) ([]models.NewsItem, error)
	// Scan returns all items, optionally filtered by instrument entity.
	// The similarity search scores the scanned set in-process.
	Scan(ctx context.Context, instrument string) ([]models.NewsItem, error)
	Health(ctx context.Context) error
	Close() error
}

// RawFeed streams raw price rows from an external acquisition source.
type RawFeed interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.RawPriceRow, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// BarPublisher mirrors accepted price rows onto a message bus so other
// consumers can subscribe to the same stream the engine ingests.
type BarPublisher interface {
	PublishBatch(ctx context.Context, rows []models.RawPriceRow) error
	Close() error
}

// Metrics records operational counters for the fusion engine.
type Metrics interface {
	RecordIngested(kind, instrument string, n int)
	RecordDeduped(n int)
	RecordRejected(kind string, n int)
	RecordRebuild(instrument string)
	RecordToolCall(tool string, failed bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
