package fusion

import (
	"context"
	"sync"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	applogger "FinFuse/pkg/logger"
)

// Store maintains fused (instrument, bucket) records joining price bars
// with the news published inside the bucket window extended by the lag
// tolerance on both sides. Records rebuild lazily on read: ingestion only
// marks buckets dirty, so a read issued after an ingest acknowledgment
// always observes the new data.
type Store struct {
	prices  domrepo.PriceStore
	news    domrepo.NewsStore
	width   time.Duration
	lag     time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger

	mu       sync.RWMutex
	cache    map[string]*models.FusionRecord
	dirty    map[string]struct{}
	maxDirty int

	lockMu   sync.Mutex
	keyLocks map[string]*sync.Mutex
}

type Option func(*Store)

func WithMetrics(m domrepo.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Store) { s.l = l }
}

// WithMaxDirty bounds the dirty set. Overflow flushes the whole cache,
// which trades a burst of rebuilds for bounded memory.
func WithMaxDirty(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxDirty = n
		}
	}
}

func NewStore(prices domrepo.PriceStore, news domrepo.NewsStore, width, lag time.Duration, opts ...Option) *Store {
	if width <= 0 {
		width = domrepo.DefaultBucket
	}
	if lag < 0 {
		lag = 0
	}
	s := &Store{
		prices:   prices,
		news:     news,
		width:    width,
		lag:      lag,
		cache:    make(map[string]*models.FusionRecord),
		dirty:    make(map[string]struct{}),
		maxDirty: 4096,
		keyLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BucketWidth exposes the configured window width for range alignment.
func (s *Store) BucketWidth() time.Duration { return s.width }

// InvalidateBar marks the bucket containing ts dirty.
func (s *Store) InvalidateBar(instrument string, ts time.Time) {
	s.markDirty(domrepo.BucketKey(instrument, domrepo.BucketStart(ts, s.width)))
}

// InvalidateNews marks every bucket the item can join, for every entity it
// mentions. An item published at t lands in the bucket containing t and in
// any bucket whose window extended by lag on both sides still covers t, so
// the dirty range spans [t-lag, t+lag].
func (s *Store) InvalidateNews(item *models.NewsItem) {
	starts := domrepo.BucketsIn(item.PublishedAt.Add(-s.lag), item.PublishedAt.Add(s.lag), s.width)
	for _, entity := range item.Entities {
		for _, start := range starts {
			s.markDirty(domrepo.BucketKey(entity, start))
		}
	}
}

func (s *Store) markDirty(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[key] = struct{}{}
	if len(s.dirty) > s.maxDirty {
		s.cache = make(map[string]*models.FusionRecord)
		s.dirty = make(map[string]struct{})
		if s.l != nil {
			s.l.Warn("fusion dirty set overflow, cache flushed",
				applogger.Int("max_dirty", s.maxDirty))
		}
	}
}

// Get returns the fused record for (instrument, bucket containing at),
// rebuilding it if the bucket is missing or dirty. Concurrent reads of the
// same dirty bucket collapse into a single rebuild.
func (s *Store) Get(ctx context.Context, instrument string, at time.Time) (*models.FusionRecord, error) {
	start := domrepo.BucketStart(at, s.width)
	key := domrepo.BucketKey(instrument, start)

	if rec, ok := s.cached(key); ok {
		return rec, nil
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// A rebuild that finished while we waited for the lock serves us too.
	if rec, ok := s.cached(key); ok {
		return rec, nil
	}
	return s.rebuild(ctx, instrument, start, key)
}

// Rebuild forces a rebuild of the bucket containing at regardless of the
// dirty state.
func (s *Store) Rebuild(ctx context.Context, instrument string, at time.Time) (*models.FusionRecord, error) {
	start := domrepo.BucketStart(at, s.width)
	key := domrepo.BucketKey(instrument, start)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	return s.rebuild(ctx, instrument, start, key)
}

// GetRange returns the fused records for every bucket in [from, to], in
// ascending bucket order.
func (s *Store) GetRange(ctx context.Context, instrument string, from, to time.Time) ([]*models.FusionRecord, error) {
	starts := domrepo.BucketsIn(from, to, s.width)
	out := make([]*models.FusionRecord, 0, len(starts))
	for _, start := range starts {
		rec, err := s.Get(ctx, instrument, start)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) cached(key string) (*models.FusionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, dirty := s.dirty[key]; dirty {
		return nil, false
	}
	rec, ok := s.cache[key]
	return rec, ok
}

func (s *Store) rebuild(ctx context.Context, instrument string, start time.Time, key string) (*models.FusionRecord, error) {
	began := time.Now()
	end := start.Add(s.width)

	// Bars strictly inside [start, end); the store query is inclusive on
	// both ends, so clip the upper bound.
	bars, err := s.prices.Query(ctx, instrument, start, end.Add(-time.Nanosecond))
	if err != nil {
		return nil, err
	}
	// News joins when published inside the bucket or within lag on
	// either side of it.
	news, err := s.news.QueryWindow(ctx, instrument, start.Add(-s.lag), end.Add(s.lag))
	if err != nil {
		return nil, err
	}

	rec := &models.FusionRecord{
		Instrument:  instrument,
		BucketStart: start,
		BucketEnd:   end,
		Bars:        bars,
		News:        news,
		RebuiltAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.cache[key] = rec
	delete(s.dirty, key)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordRebuild(instrument)
		s.metrics.RecordLatency("fusion_rebuild", time.Since(began).Seconds())
	}
	if s.l != nil {
		s.l.Debug("fusion bucket rebuilt",
			applogger.String("instrument", instrument),
			applogger.String("bucket", start.Format(time.RFC3339)),
			applogger.Int("bars", len(bars)),
			applogger.Int("news", len(news)),
		)
	}
	return rec, nil
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if m, ok := s.keyLocks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.keyLocks[key] = m
	return m
}

// DirtyCount reports the current dirty-set size.
func (s *Store) DirtyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty)
}

// Sweep eagerly rebuilds every currently dirty bucket. It stops on the
// first error so storage trouble does not spin the loop.
func (s *Store) Sweep(ctx context.Context) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	for _, key := range keys {
		instrument, start, ok := domrepo.ParseBucketKey(key)
		if !ok {
			continue
		}
		if _, err := s.Get(ctx, instrument, start); err != nil {
			return err
		}
	}
	return nil
}

// RunSweeper rebuilds dirty buckets on the given interval until ctx is
// cancelled. Interval <= 0 disables the sweeper.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && s.l != nil {
				s.l.Warn("fusion sweep failed", applogger.Error(err))
			}
		}
	}
}
