package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	applogger "FinFuse/pkg/logger"
)

// Batcher is the downstream the pipeline flushes to.
type Batcher interface {
	Ingest(ctx context.Context, rows []models.RawPriceRow) (models.PriceIngestReport, error)
}

// IngestPipeline sits between the streaming feed and the batch ingestor.
// It buffers incoming rows, flushes them as batches on size or interval,
// and backs off with requeue when storage is unavailable, so a feed burst
// or a short outage drops as little as possible.
type IngestPipeline struct {
	batcher       Batcher
	publisher     domrepo.BarPublisher
	metrics       domrepo.Metrics
	l             *applogger.Logger
	batchSize     int
	flushInterval time.Duration
	bufCh         chan models.RawPriceRow
	stopCh        chan struct{}
	doneCh        chan struct{}
	started       bool
	mu            sync.Mutex
}

type PipelineOption func(*IngestPipeline)

// WithBatchSize sets the flush threshold.
func WithBatchSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets the max time a row waits before flushing.
func WithFlushInterval(d time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithPublisher mirrors each successfully ingested batch onto a message
// bus. Publishing is best effort and never blocks the flush path.
func WithPublisher(pub domrepo.BarPublisher) PipelineOption {
	return func(p *IngestPipeline) {
		p.publisher = pub
	}
}

// WithBufferSize sets the intake buffer capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufCh = make(chan models.RawPriceRow, n)
		}
	}
}

func NewIngestPipeline(batcher Batcher, metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		batcher:       batcher,
		metrics:       metrics,
		l:             l,
		batchSize:     100,
		flushInterval: time.Second,
		bufCh:         make(chan models.RawPriceRow, 4096),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Offer enqueues a row without blocking; rows are dropped when the intake
// buffer is full.
func (p *IngestPipeline) Offer(row models.RawPriceRow) {
	select {
	case p.bufCh <- row:
	default:
		if p.metrics != nil {
			p.metrics.RecordError("pipeline_buffer_full")
		}
	}
}

// Start launches the background flush loop.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *IngestPipeline) run(ctx context.Context) {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]models.RawPriceRow, 0, p.batchSize)
	backoff := 50 * time.Millisecond

	flush := func() {
		if len(batch) == 0 {
			return
		}
		_, err := p.batcher.Ingest(ctx, batch)
		switch {
		case errors.Is(err, models.ErrStorageUnavailable):
			// whole batch aborted; requeue what fits and back off
			if backoff < 2*time.Second {
				backoff *= 2
			}
			if p.metrics != nil {
				p.metrics.RecordError("pipeline_flush")
			}
			for _, row := range batch {
				select {
				case p.bufCh <- row:
				default:
					if p.metrics != nil {
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				}
			}
			time.Sleep(backoff)
		case err != nil:
			if p.l != nil {
				p.l.Error("pipeline flush failed", applogger.Error(err))
			}
		default:
			backoff = 50 * time.Millisecond
			if p.publisher != nil {
				if pubErr := p.publisher.PublishBatch(ctx, batch); pubErr != nil {
					if p.metrics != nil {
						p.metrics.RecordError("pipeline_publish")
					}
					if p.l != nil {
						p.l.Warn("bar publish failed", applogger.Error(pubErr))
					}
				}
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-p.stopCh:
			// drain what is already buffered, then flush
			for {
				select {
				case row := <-p.bufCh:
					batch = append(batch, row)
					if len(batch) >= p.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case row := <-p.bufCh:
			batch = append(batch, row)
			if len(batch) >= p.batchSize {
				flush()
			}
		}
	}
}

// Stop flushes buffered rows and stops the loop.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}
