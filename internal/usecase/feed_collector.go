package usecase

import (
	"context"
	"time"

	"FinFuse/internal/domain/models"
	drepo "FinFuse/internal/domain/repository"
	mid "FinFuse/internal/middleware"
	applogger "FinFuse/pkg/logger"
)

// FeedCollector reads raw rows from the streaming feed and hands them to
// the ingest pipeline. Stream errors trigger a reconnect; the collector
// owns the feed lifecycle.
type FeedCollector struct {
	feed    drepo.RawFeed
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
	l       *applogger.Logger

	reconnectBackoff time.Duration
}

func NewFeedCollector(feed drepo.RawFeed, pipe *mid.IngestPipeline, metrics drepo.Metrics, l *applogger.Logger) *FeedCollector {
	return &FeedCollector{feed: feed, pipe: pipe, metrics: metrics, l: l,
		reconnectBackoff: time.Second}
}

// IsConnected reports the feed connection status.
func (c *FeedCollector) IsConnected() bool { return c.feed.IsConnected() }

func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.feed.Connect(ctx); err != nil {
		return err
	}
	if err := c.feed.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	rowCh, errCh := c.feed.Read(ctx)
	go c.consume(ctx, rowCh, errCh)
	return nil
}

func (c *FeedCollector) consume(ctx context.Context, rowCh <-chan models.RawPriceRow, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, open := <-errCh:
			// the feed closes both channels after its final error, so a
			// closed error channel also means the stream is gone
			if open && err == nil {
				continue
			}
			if err != nil {
				if c.metrics != nil {
					c.metrics.RecordError("feed_stream")
				}
				if c.l != nil {
					c.l.Warn("feed stream error, reconnecting", applogger.Error(err))
				}
			}
			var ok bool
			rowCh, errCh, ok = c.reconnect(ctx)
			if !ok {
				return
			}
		case row, ok := <-rowCh:
			if !ok {
				// wait for the stream error to drive the reconnect
				rowCh = nil
				continue
			}
			c.pipe.Offer(row)
		}
	}
}

// reconnect retries with backoff until the feed is back or ctx ends.
func (c *FeedCollector) reconnect(ctx context.Context) (<-chan models.RawPriceRow, <-chan error, bool) {
	delay := c.reconnectBackoff
	for {
		err := c.feed.Reconnect(ctx)
		if err == nil {
			rowCh, errCh := c.feed.Read(ctx)
			return rowCh, errCh, true
		}
		if c.metrics != nil {
			c.metrics.RecordError("feed_reconnect")
		}
		if c.l != nil {
			c.l.Warn("feed reconnect failed",
				applogger.Error(err),
				applogger.Duration("retry_in", delay))
		}
		select {
		case <-ctx.Done():
			return nil, nil, false
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

// Shutdown stops the pipeline and closes the feed.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	return c.feed.Close()
}
