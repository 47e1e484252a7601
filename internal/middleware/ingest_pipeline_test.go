package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"FinFuse/internal/domain/models"
)

type recordingBatcher struct {
	mu      sync.Mutex
	batches [][]models.RawPriceRow
	fail    error
}

func (b *recordingBatcher) Ingest(_ context.Context, rows []models.RawPriceRow) (models.PriceIngestReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return models.PriceIngestReport{}, b.fail
	}
	cp := make([]models.RawPriceRow, len(rows))
	copy(cp, rows)
	b.batches = append(b.batches, cp)
	return models.PriceIngestReport{Committed: len(rows)}, nil
}

func (b *recordingBatcher) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, batch := range b.batches {
		n += len(batch)
	}
	return n
}

type recordingPublisher struct {
	mu   sync.Mutex
	rows []models.RawPriceRow
}

func (p *recordingPublisher) PublishBatch(_ context.Context, rows []models.RawPriceRow) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, rows...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testRow(instrument string, i int) models.RawPriceRow {
	return models.RawPriceRow{
		Instrument: instrument,
		Timestamp:  time.Date(2024, 3, 1, 10, i, 0, 0, time.UTC).Format(time.RFC3339),
		Open:       "100",
		High:       "101",
		Low:        "99",
		Close:      "100.5",
		Volume:     "1000",
	}
}

func TestPipelineFlushOnStop(t *testing.T) {
	batcher := &recordingBatcher{}
	pub := &recordingPublisher{}
	pipe := NewIngestPipeline(batcher, nil, nil,
		WithBatchSize(100),
		WithFlushInterval(time.Hour),
		WithPublisher(pub),
	)
	pipe.Start(context.Background())

	for i := 0; i < 7; i++ {
		pipe.Offer(testRow("AAPL", i))
	}
	pipe.Stop()

	if got := batcher.total(); got != 7 {
		t.Fatalf("ingested %d rows, want 7", got)
	}
	pub.mu.Lock()
	published := len(pub.rows)
	pub.mu.Unlock()
	if published != 7 {
		t.Fatalf("published %d rows, want 7", published)
	}
}

func TestPipelineFlushOnBatchSize(t *testing.T) {
	batcher := &recordingBatcher{}
	pipe := NewIngestPipeline(batcher, nil, nil,
		WithBatchSize(3),
		WithFlushInterval(time.Hour),
	)
	pipe.Start(context.Background())

	for i := 0; i < 3; i++ {
		pipe.Offer(testRow("MSFT", i))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if batcher.total() == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	pipe.Stop()

	if got := batcher.total(); got != 3 {
		t.Fatalf("ingested %d rows, want 3", got)
	}
}
