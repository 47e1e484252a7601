package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"FinFuse/internal/domain/models"
	domrepo "FinFuse/internal/domain/repository"
	domservice "FinFuse/internal/domain/service"
	"FinFuse/internal/service/cache"
	"FinFuse/internal/service/fusion"
	"FinFuse/internal/service/nlp"
	applogger "FinFuse/pkg/logger"
	"FinFuse/pkg/util"
)

// Service answers the two retrieval queries the agent tools are built on:
// time-range price history and embedding-similarity news search. Both read
// through the fusion store / news store and cache serialized results.
type Service struct {
	fusion    *fusion.Store
	news      domrepo.NewsStore
	annotator domservice.Annotator
	cache     cache.BytesCache
	cacheTTL  time.Duration
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

type Option func(*Service)

func WithCache(c cache.BytesCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *applogger.Logger) Option {
	return func(s *Service) { s.l = l }
}

func NewService(fs *fusion.Store, news domrepo.NewsStore, annotator domservice.Annotator, opts ...Option) *Service {
	s := &Service{fusion: fs, news: news, annotator: annotator, cacheTTL: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PriceHistory returns the bars for instrument with timestamps in
// [from, to], in non-decreasing timestamp order. Reads go through the
// fusion store so they observe every acknowledged ingest.
func (s *Service) PriceHistory(ctx context.Context, instrument string, from, to time.Time) ([]models.PriceBar, error) {
	began := time.Now()
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return []models.PriceBar{}, nil
	}

	key := fmt.Sprintf("ph:%s:%d:%d", instrument, from.UnixMilli(), to.UnixMilli())
	if cached, ok := s.fromCache(key); ok {
		var bars []models.PriceBar
		if err := json.Unmarshal(cached, &bars); err == nil {
			return bars, nil
		}
	}

	alignedFrom, alignedTo := util.AlignRange(from, to, s.fusion.BucketWidth())
	recs, err := s.fusion.GetRange(ctx, instrument, alignedFrom, alignedTo)
	if err != nil {
		return nil, err
	}
	bars := make([]models.PriceBar, 0, 64)
	for _, rec := range recs {
		for _, b := range rec.Bars {
			if b.Timestamp.Before(from) || b.Timestamp.After(to) {
				continue
			}
			bars = append(bars, b)
		}
	}

	s.toCache(key, bars)
	if s.metrics != nil {
		s.metrics.RecordLatency("retrieval_price_history", time.Since(began).Seconds())
	}
	return bars, nil
}

// FusionRange returns the fused records covering [from, to].
func (s *Service) FusionRange(ctx context.Context, instrument string, from, to time.Time) ([]*models.FusionRecord, error) {
	return s.fusion.GetRange(ctx, instrument, from.UTC(), to.UTC())
}

// RelevantNews scores stored items against the query embedding and returns
// the topK best matches, best first. Ties in score break toward the newer
// item. instrument == "" searches across all entities; topK <= 0 returns
// an empty result without touching storage.
func (s *Service) RelevantNews(ctx context.Context, query, instrument string, topK int) ([]models.ScoredNews, error) {
	began := time.Now()
	if topK <= 0 {
		return []models.ScoredNews{}, nil
	}

	sum := sha256.Sum256([]byte(query))
	key := fmt.Sprintf("rn:%s:%d:%s", instrument, topK, hex.EncodeToString(sum[:8]))
	if cached, ok := s.fromCache(key); ok {
		var scored []models.ScoredNews
		if err := json.Unmarshal(cached, &scored); err == nil {
			return scored, nil
		}
	}

	qvec, err := s.annotator.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	items, err := s.news.Scan(ctx, instrument)
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredNews, 0, len(items))
	for _, it := range items {
		scored = append(scored, models.ScoredNews{
			Item:  it,
			Score: nlp.Cosine(qvec, it.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.PublishedAt.After(scored[j].Item.PublishedAt)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	s.toCache(key, scored)
	if s.metrics != nil {
		s.metrics.RecordLatency("retrieval_relevant_news", time.Since(began).Seconds())
	}
	if s.l != nil {
		s.l.Debug("news similarity search",
			applogger.String("instrument", instrument),
			applogger.Int("candidates", len(items)),
			applogger.Int("returned", len(scored)),
		)
	}
	return scored, nil
}

// FlushCache drops all cached query results. Ingest paths call it after
// a commit so cached responses never serve superseded data.
func (s *Service) FlushCache() {
	if s.cache == nil {
		return
	}
	if err := s.cache.FlushBytes(); err != nil && s.l != nil {
		s.l.Warn("result cache flush failed", applogger.Error(err))
	}
}

func (s *Service) fromCache(key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, ok, err := s.cache.GetBytes(key)
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}

func (s *Service) toCache(key string, v interface{}) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.SetBytes(key, b, s.cacheTTL)
}
